package handler

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	headerDeviceID    = "X-Device-ID"
	headerFingerprint = "X-Fingerprint"
)

// deviceID prefers the explicit value, then the device header.
func deviceID(c *gin.Context, explicit string) string {
	if v := strings.TrimSpace(explicit); v != "" {
		return v
	}
	return strings.TrimSpace(c.GetHeader(headerDeviceID))
}

func fingerprint(c *gin.Context, explicit string) string {
	if v := strings.TrimSpace(explicit); v != "" {
		return v
	}
	return strings.TrimSpace(c.GetHeader(headerFingerprint))
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
