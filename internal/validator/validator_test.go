package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roomInput struct {
	Name     string `json:"name" validate:"required,notblank,max=100"`
	Kind     string `json:"kind" validate:"required,is-room-kind"`
	MaxUsers int    `json:"maxUsers" validate:"required,gte=2"`
}

type statusInput struct {
	Status string `json:"status" validate:"required,is-live-status"`
}

type typingInput struct {
	RoomID      uint `json:"roomId" validate:"required_without=RecipientID,excluded_with=RecipientID"`
	RecipientID uint `json:"recipientId" validate:"required_without=RoomID"`
}

func TestValidateUsesJSONFieldNames(t *testing.T) {
	v := New()

	err := v.Validate(&roomInput{Kind: "galaxy", MaxUsers: 1})
	require.Error(t, err)

	vErr, ok := err.(*ValidationError)
	require.True(t, ok)
	assert.Equal(t, "This field is required", vErr.Errors["name"])
	assert.Equal(t, "Must be one of: topic, region", vErr.Errors["kind"])
	assert.Contains(t, vErr.Errors["maxUsers"], "greater than or equal to 2")
}

func TestValidateAcceptsValidRoom(t *testing.T) {
	v := New()
	assert.NoError(t, v.Validate(&roomInput{Name: "general", Kind: "topic", MaxUsers: 10}))
}

func TestNotBlankRejectsWhitespace(t *testing.T) {
	v := New()

	err := v.Validate(&roomInput{Name: " \t ", Kind: "topic", MaxUsers: 10})
	require.Error(t, err)

	vErr, ok := err.(*ValidationError)
	require.True(t, ok)
	assert.Equal(t, "This field cannot be blank", vErr.Errors["name"])
}

func TestLiveStatusRejectsOffline(t *testing.T) {
	v := New()

	assert.NoError(t, v.Validate(&statusInput{Status: "away"}))

	err := v.Validate(&statusInput{Status: "offline"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status")
}

func TestTypingTargetIsExclusive(t *testing.T) {
	v := New()

	assert.NoError(t, v.Validate(&typingInput{RoomID: 1}))
	assert.NoError(t, v.Validate(&typingInput{RecipientID: 2}))
	assert.Error(t, v.Validate(&typingInput{}))
	assert.Error(t, v.Validate(&typingInput{RoomID: 1, RecipientID: 2}))
}
