package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBotDetector_DetectBotWall(t *testing.T) {
	bd := NewBotDetector()

	blocked, reason := bd.DetectBotWall(`<div>Our systems have detected unusual traffic from your computer network.</div>`, "Google Search")
	assert.True(t, blocked)
	assert.Contains(t, reason, "bot wall")

	blocked, reason = bd.DetectBotWall(`<form action="/sorry/index"><div class="g-recaptcha"></div></form>`, "")
	assert.True(t, blocked)
	assert.Contains(t, reason, "captcha")

	blocked, _ = bd.DetectBotWall(`<table class="AHFItb"></table>`, "iPhone 14 128 - Google Search")
	assert.False(t, blocked)
}
