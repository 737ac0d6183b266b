package imagesim

import (
	"fmt"
	"net/url"

	"github.com/hupe1980/imagesim/store"
)

// Locator resolves a public-facing URL or path for an image record. It is
// only used for response shaping; no similarity algorithm depends on it.
type Locator interface {
	URL(rec store.Record) (string, error)
}

// LocatorFunc adapts a function to the Locator interface.
type LocatorFunc func(rec store.Record) (string, error)

func (f LocatorFunc) URL(rec store.Record) (string, error) {
	return f(rec)
}

// PathLocator returns the record's storage path unchanged. It is the
// default when no locator is configured.
func PathLocator() Locator {
	return LocatorFunc(func(rec store.Record) (string, error) {
		return rec.Path, nil
	})
}

// BaseURLLocator joins the record path onto a service base URL, e.g.
// "https://img.example.com/" + "uploaded_images/ab/cd/abcd.jpg".
func BaseURLLocator(base string) (Locator, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	return LocatorFunc(func(rec store.Record) (string, error) {
		ref, err := url.Parse(rec.Path)
		if err != nil {
			return "", fmt.Errorf("parse record path: %w", err)
		}
		return u.ResolveReference(ref).String(), nil
	}), nil
}
