package scraper

import (
	"regexp"
	"strings"
)

// BotDetector recognizes interstitial pages the search engine serves instead
// of results when it suspects automation.
type BotDetector struct {
	botPatterns     []*regexp.Regexp
	captchaPatterns []*regexp.Regexp
}

// NewBotDetector creates a new bot detector
func NewBotDetector() *BotDetector {
	return &BotDetector{
		botPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)unusual traffic from your computer network`),
			regexp.MustCompile(`(?i)our systems have detected unusual traffic`),
			regexp.MustCompile(`(?i)access denied`),
			regexp.MustCompile(`(?i)too many requests`),
			regexp.MustCompile(`(?i)before you continue to google`),
		},
		captchaPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)recaptcha`),
			regexp.MustCompile(`(?i)i'?m not a robot`),
			regexp.MustCompile(`(?i)/sorry/index`),
		},
	}
}

// DetectBotWall checks whether the page is a block or consent wall. The
// reason names the first pattern that matched.
func (bd *BotDetector) DetectBotWall(pageContent, pageTitle string) (bool, string) {
	content := strings.ToLower(pageContent + " " + pageTitle)

	for _, pattern := range bd.captchaPatterns {
		if pattern.MatchString(content) {
			return true, "captcha: " + pattern.String()
		}
	}
	for _, pattern := range bd.botPatterns {
		if pattern.MatchString(content) {
			return true, "bot wall: " + pattern.String()
		}
	}
	return false, ""
}
