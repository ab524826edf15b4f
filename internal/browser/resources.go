package browser

import (
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// blockResources fails requests for the configured resource types. The
// timeline markup does not need images or fonts to be complete.
func blockResources(page *rod.Page, types []string) {
	block := blockSet(types)
	router := page.HijackRequests()
	router.MustAdd("*", func(h *rod.Hijack) {
		if block[resourceClass(h.Request.Type())] {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	})
	go router.Run()
}

func blockSet(types []string) map[string]bool {
	set := make(map[string]bool, len(types))
	for _, t := range types {
		set[strings.ToLower(strings.TrimSpace(t))] = true
	}
	return set
}

// resourceClass maps a CDP resource type to the config spelling.
func resourceClass(t proto.NetworkResourceType) string {
	switch t {
	case proto.NetworkResourceTypeImage:
		return "images"
	case proto.NetworkResourceTypeFont:
		return "fonts"
	case proto.NetworkResourceTypeMedia:
		return "media"
	case proto.NetworkResourceTypeStylesheet:
		return "stylesheets"
	}
	return strings.ToLower(string(t))
}
