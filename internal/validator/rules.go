package validator

import (
	"log"

	"creatorhub/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

func registerCustomRules(v *validator.Validate) {
	mustRegister := func(tag string, fn validator.Func) {
		if err := v.RegisterValidation(tag, fn); err != nil {
			log.Fatalf("failed to register custom validation tag '%s': %v", tag, err)
		}
	}

	mustRegister("notblank", validators.NotBlank)
	mustRegister("is-room-kind", validateRoomKind)
	mustRegister("is-message-kind", validateMessageKind)
	mustRegister("is-presence-status", validatePresenceStatus)
	mustRegister("is-live-status", validateLiveStatus)
}

// Empty values pass; 'required' covers them.

func validateRoomKind(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	return models.RoomKind(value).IsValid()
}

func validateMessageKind(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	return models.MessageKind(value).IsValid()
}

func validatePresenceStatus(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	return models.PresenceStatus(value).IsValid()
}

func validateLiveStatus(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	return models.PresenceStatus(value).IsLive()
}
