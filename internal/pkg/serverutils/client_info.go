package serverutils

import (
	"strings"

	"biblo-chat-be/pkg/store"

	"github.com/gofiber/fiber/v2"
	"github.com/mssola/useragent"
)

const unknownClient = "unknown"

// ExtractClientMeta reads the caller IP and parses OS / browser from the User-Agent header.
func ExtractClientMeta(ctx *fiber.Ctx) store.ClientMeta {
	ip := ctx.IP()
	if ip == "" {
		ip = unknownClient
	}
	return ParseUserAgent(ip, ctx.Get(fiber.HeaderUserAgent))
}

func ParseUserAgent(ip, userAgent string) store.ClientMeta {
	meta := store.ClientMeta{IP: ip, OS: unknownClient, Browser: unknownClient}
	if strings.TrimSpace(userAgent) == "" {
		return meta
	}

	ua := useragent.New(userAgent)
	if osInfo := ua.OSInfo(); osInfo.Name != "" {
		meta.OS = strings.TrimSpace(osInfo.Name + " " + osInfo.Version)
	}
	if name, version := ua.Browser(); name != "" {
		meta.Browser = strings.TrimSpace(name + " " + version)
	}
	return meta
}
