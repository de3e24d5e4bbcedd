package models

import "time"

// DeviceToken is a push client registration (MongoDB).
type DeviceToken struct {
	UserID    string    `json:"user_id" bson:"user_id"`
	Token     string    `json:"token" bson:"token"`
	Platform  string    `json:"platform" bson:"platform"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

type RegisterDeviceRequest struct {
	Token    string `json:"token" validate:"required,min=8,max=512"`
	Platform string `json:"platform" validate:"required,oneof=ios android web"`
}
