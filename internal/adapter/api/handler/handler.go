package handler

import (
	"gorm.io/gorm"

	"agrolink/internal/infrastructure/auth"
	"agrolink/internal/infrastructure/firebase"
	ws "agrolink/internal/infrastructure/websocket"
	"agrolink/internal/usecase"
)

// Setup builds the package-level HTTP handlers the routers look up.
func Setup(
	notificationUseCase *usecase.NotificationUseCase,
	presenceUseCase *usecase.PresenceUseCase,
	db *gorm.DB,
	firebaseAuth *firebase.FirebaseAuthClient,
	wsManager *ws.Manager,
	devIssuer *auth.HMACVerifier,
) {
	SetupNotificationHandler(notificationUseCase)
	SetupAgentHandler(presenceUseCase)
	SetupHealthHandler(db, firebaseAuth, wsManager)
	if devIssuer != nil {
		SetupDevTokenHandler(devIssuer)
	}
}
