package negotiation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visionmatch/internal/models"
)

func TestValidateMessage(t *testing.T) {
	tests := []struct {
		name string
		text string
		want error
	}{
		{"ten digits", "call me on 9876543210", ErrPhoneNumber},
		{"international", "+919876543210 whatsapp", ErrPhoneNumber},
		{"email", "write to me@example.com", ErrEmailAddress},
		{"https link", "see https://portfolio.example", ErrExternalLink},
		{"www link uppercase", "WWW.example.com", ErrExternalLink},
		{"plain text", "Can we do 40 edited photos?", nil},
		{"short number", "I can do 12345 frames", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMessage(tt.text)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestValidateMessage_UserFacingMessage(t *testing.T) {
	err := ValidateMessage("9876543210")
	var v *ContentViolation
	require.True(t, errors.As(err, &v))
	assert.Equal(t, "phone", v.Reason)
	assert.Equal(t, "Phone numbers are not allowed for your protection.", err.Error())
}

func TestValidateOffer(t *testing.T) {
	assert.NoError(t, ValidateOffer(1000, "20 photos"))
	assert.ErrorIs(t, ValidateOffer(0, "20 photos"), ErrInvalidPrice)
	assert.ErrorIs(t, ValidateOffer(-5, "20 photos"), ErrInvalidPrice)
	assert.ErrorIs(t, ValidateOffer(1000, "   "), ErrMissingDeliverables)
}

func TestValidateAccept(t *testing.T) {
	s := Fold([]models.NegotiationMessage{
		msg("01", models.SenderClient, models.MessageCounter, 18000, "40 photos"),
		msg("02", models.SenderCreator, models.MessageOffer, 19000, "40 photos"),
	})

	t.Run("fills omitted terms", func(t *testing.T) {
		got, err := ValidateAccept(s, models.SenderClient, nil, "")
		require.NoError(t, err)
		assert.Equal(t, int64(19000), got.Price)
		assert.Equal(t, "40 photos", got.Deliverables)
		assert.Equal(t, models.SenderCreator, got.From)
	})

	t.Run("own offer", func(t *testing.T) {
		_, err := ValidateAccept(s, models.SenderCreator, nil, "")
		assert.ErrorIs(t, err, ErrOwnOffer)
	})

	t.Run("stale price", func(t *testing.T) {
		old := int64(18000)
		_, err := ValidateAccept(s, models.SenderClient, &old, "")
		assert.ErrorIs(t, err, ErrStaleOffer)
	})

	t.Run("stale deliverables", func(t *testing.T) {
		_, err := ValidateAccept(s, models.SenderClient, nil, "60 photos")
		assert.ErrorIs(t, err, ErrStaleOffer)
	})

	t.Run("no offer", func(t *testing.T) {
		_, err := ValidateAccept(State{}, models.SenderClient, nil, "")
		assert.ErrorIs(t, err, ErrNoOffer)
	})
}
