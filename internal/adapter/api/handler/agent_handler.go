package handler

import (
	"github.com/labstack/echo/v4"

	"agrolink/internal/domain/entity"
	"agrolink/internal/usecase"
	"agrolink/pkg/errors"
	"agrolink/pkg/response"
)

type AgentHandler struct {
	presenceUseCase *usecase.PresenceUseCase
}

var agentHandler *AgentHandler

func NewAgentHandler(presenceUseCase *usecase.PresenceUseCase) *AgentHandler {
	return &AgentHandler{
		presenceUseCase: presenceUseCase,
	}
}

func SetupAgentHandler(presenceUseCase *usecase.PresenceUseCase) {
	agentHandler = NewAgentHandler(presenceUseCase)
}

func GetAgentHandler() *AgentHandler {
	return agentHandler
}

// ListOnlineAgents reports the agents the presence registry can reach right
// now, enriched with their stored counters when available.
func (h *AgentHandler) ListOnlineAgents(c echo.Context) error {
	ctx := c.Request().Context()

	ids, err := h.presenceUseCase.OnlineAgents(ctx)
	if err != nil {
		return response.Error(c, err)
	}

	agents := make([]*entity.Agent, 0, len(ids))
	for _, id := range ids {
		agent, err := h.presenceUseCase.GetAgent(ctx, id)
		if err != nil {
			if !errors.Is(err, "NOT_FOUND") {
				return response.Error(c, err)
			}
			agent = &entity.Agent{ID: id, IsOnline: true}
		}
		agents = append(agents, agent)
	}

	return response.Success(c, map[string]interface{}{
		"agents": agents,
		"count":  len(agents),
	})
}

func (h *AgentHandler) GetAgent(c echo.Context) error {
	agent, err := h.presenceUseCase.GetAgent(c.Request().Context(), c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, agent)
}
