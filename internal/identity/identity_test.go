package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"5569999089202", "5569999089202"},
		{"+55 (69) 99908-9202", "5569999089202"},
		{"069999089202", "5569999089202"},
		{"69999089202", "5569999089202"},
		{"", ""},
		{"abc", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), tt.in)
	}
}

func TestFromJID(t *testing.T) {
	assert.Equal(t, "5569999089202", FromJID("5569999089202@s.whatsapp.net"))
	assert.Equal(t, "5569999089202", FromJID("5569999089202:12@s.whatsapp.net"))
	assert.Equal(t, "5569999089202@s.whatsapp.net", ToJID("5569999089202"))
}

func TestGroupAndBroadcast(t *testing.T) {
	assert.True(t, IsGroup("120363025246125486@g.us"))
	assert.False(t, IsGroup("5569999089202@s.whatsapp.net"))
	assert.True(t, IsBroadcast("status@broadcast"))
	assert.False(t, IsBroadcast("5569999089202@s.whatsapp.net"))
}
