package browser

import (
	"errors"
	"strings"

	"oeb_automation/domain/entities"

	"github.com/chromedp/cdproto"
	"github.com/go-rod/rod"
	"github.com/tebeka/selenium"
)

// Messages the browsers use when a handle outlived the node or the execution
// context it pointed into.
var (
	playwrightStaleMessages = []string{
		"Element is not attached to the DOM",
		"JSHandle is disposed",
		"Execution context was destroyed",
		"Cannot find context with specified id",
	}

	cdpStaleMessages = []string{
		"Could not find node with given id",
		"No node with given id",
		"Node with given id does not belong to the document",
		"Node is detached from document",
		"Cannot find context with specified id",
	}
)

const seleniumStaleError = "stale element reference"

// classifyPlaywright - marks detached handle failures as stale
func classifyPlaywright(err error) error {
	if err == nil || entities.IsStale(err) {
		return err
	}
	if containsAny(err.Error(), playwrightStaleMessages) {
		return entities.Stale(err)
	}
	return err
}

// classifySelenium - marks W3C "stale element reference" failures as stale
func classifySelenium(err error) error {
	if err == nil || entities.IsStale(err) {
		return err
	}
	var wdErr *selenium.Error
	if errors.As(err, &wdErr) && wdErr.Err == seleniumStaleError {
		return entities.Stale(err)
	}
	return err
}

// classifyRod - marks released remote objects and dropped node ids as stale
func classifyRod(err error) error {
	if err == nil || entities.IsStale(err) {
		return err
	}
	var notFound *rod.ObjectNotFoundError
	if errors.As(err, &notFound) {
		return entities.Stale(err)
	}
	if containsAny(err.Error(), cdpStaleMessages) {
		return entities.Stale(err)
	}
	return err
}

// classifyCDP - marks protocol errors about unknown node ids as stale
func classifyCDP(err error) error {
	if err == nil || entities.IsStale(err) {
		return err
	}
	var cdpErr *cdproto.Error
	if errors.As(err, &cdpErr) && containsAny(cdpErr.Message, cdpStaleMessages) {
		return entities.Stale(err)
	}
	return err
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
