package model_test

import (
	"encoding/json"
	"testing"

	"github.com/Totarae/LinkLauncher/internal/apperr"
	"github.com/Totarae/LinkLauncher/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinkPatch_CustomIconTriState(t *testing.T) {
	var absent model.LinkPatch
	require.NoError(t, json.Unmarshal([]byte(`{"title":"x"}`), &absent))
	assert.False(t, absent.CustomIconURL.Set)

	var cleared model.LinkPatch
	require.NoError(t, json.Unmarshal([]byte(`{"custom_icon_url":null}`), &cleared))
	assert.True(t, cleared.CustomIconURL.Set)
	assert.Nil(t, cleared.CustomIconURL.Value)

	var set model.LinkPatch
	require.NoError(t, json.Unmarshal([]byte(`{"custom_icon_url":"https://cdn.example.com/i.png"}`), &set))
	assert.True(t, set.CustomIconURL.Set)
	require.NotNil(t, set.CustomIconURL.Value)
	assert.Equal(t, "https://cdn.example.com/i.png", *set.CustomIconURL.Value)
}

func TestCheckOwner(t *testing.T) {
	link := &model.Link{ID: 1, UserID: "alice"}
	assert.NoError(t, model.CheckOwner(link, "alice"))

	err := model.CheckOwner(link, "bob")
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
}

func TestLinkClone_Independent(t *testing.T) {
	icon := "https://a/icon.png"
	orig := model.Link{ID: 1, CustomIconURL: &icon}
	c := orig.Clone()
	*c.CustomIconURL = "changed"
	assert.Equal(t, "https://a/icon.png", *orig.CustomIconURL)
}
