// Package extract turns listing and detail documents into raw records using a
// configurable selector Schema. It knows nothing about networking.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/catalog-crawler/internal/catalog"
)

// Extractor applies a Schema to documents.
type Extractor struct {
	schema   Schema
	base     *url.URL
	pageSize int
}

// New builds an Extractor. baseURL resolves relative links; pageSize is the
// number of items per listing page used to derive preview IDs.
func New(schema Schema, baseURL string, pageSize int) (*Extractor, error) {
	if pageSize <= 0 {
		return nil, errors.New("page size must be > 0")
	}
	if strings.TrimSpace(schema.Listing.Item) == "" || strings.TrimSpace(schema.Detail.Title) == "" {
		return nil, errors.New("schema requires listing.item and detail.title selectors")
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if !base.IsAbs() {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}
	return &Extractor{schema: schema, base: base, pageSize: pageSize}, nil
}

// Resolve turns a possibly relative reference into an absolute URL.
func (e *Extractor) Resolve(ref string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", fmt.Errorf("parse reference %q: %w", ref, err)
	}
	return e.base.ResolveReference(u).String(), nil
}

// Listing returns one raw preview per item block of a listing page. The k-th
// block (1-based) on page p gets ID (p-1)*pageSize + k. Missing elements
// yield nil fields.
func (e *Extractor) Listing(doc catalog.Document, page int) ([]catalog.PreviewRecord, error) {
	root, err := goquery.NewDocumentFromReader(bytes.NewReader(doc.Body))
	if err != nil {
		return nil, fmt.Errorf("parse listing %s: %w", doc.URL, err)
	}
	s := e.schema.Listing
	var records []catalog.PreviewRecord
	root.Find(s.Item).Each(func(i int, block *goquery.Selection) {
		rec := catalog.PreviewRecord{
			ID:               (page-1)*e.pageSize + i + 1,
			Title:            optionalText(block, s.Title, ""),
			Synonyms:         optionalText(block, s.Synonyms, ""),
			Type:             optionalText(block, s.Type, ""),
			Season:           optionalText(block, s.Season, ""),
			ShortDescription: optionalText(block, s.ShortDescription, ""),
		}
		if genres := optionalText(block, s.Genre, ""); genres != nil && *genres != "" {
			rec.Genre = splitTrim(*genres, s.GenreSeparator)
		}
		if href := optionalAttr(block, s.Link, "href"); href != nil {
			rec.URL = *href
		}
		records = append(records, rec)
	})
	return records, nil
}

// Detail returns the raw field set of a detail page in document order:
// title, synonyms, the definition-list pairs, characters, description,
// thumbnail, screenshots, trailer. Only the title is required.
func (e *Extractor) Detail(doc catalog.Document) (catalog.Fields, error) {
	root, err := goquery.NewDocumentFromReader(bytes.NewReader(doc.Body))
	if err != nil {
		return nil, fmt.Errorf("parse detail %s: %w", doc.URL, err)
	}
	s := e.schema.Detail

	title := root.Find(s.Title).First()
	if title.Length() == 0 {
		return nil, fmt.Errorf("detail %s: title: %w", doc.URL, catalog.ErrMissingField)
	}

	var fields catalog.Fields
	fields.Set("title", textOf(title, ""))
	fields.Set("synonyms", texts(root.Find(s.Synonyms), ""))

	info := root.Find(s.Info).First()
	labels := texts(info.Find(s.Label), " ")
	values := texts(info.Find(s.Value), " ")
	// The final pair is the character roster.
	pairs := min(len(labels), len(values)) - 1
	for i := 0; i < pairs; i++ {
		fields.Set(labels[i], values[i])
	}
	fields.Set("characters", roster(info.Find(s.Value).Last()))

	fields.Set("description", nullable(optionalText(root.Selection, s.Description, " ")))
	fields.Set("thumbnail", nullable(e.thumbnail(root)))
	fields.Set("screenshots", e.screenshots(root))
	fields.Set("trailer", nullable(optionalAttr(root.Selection, s.Trailer, "href")))
	return fields, nil
}

func (e *Extractor) thumbnail(root *goquery.Document) *string {
	s := e.schema.Detail
	v := optionalAttr(root.Selection, s.Thumbnail, s.ThumbnailAttr)
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(strings.TrimSuffix(*v, s.ThumbnailSuffix))
	return &trimmed
}

// screenshots returns absolute links, or nil when the page has none.
func (e *Extractor) screenshots(root *goquery.Document) any {
	var out []string
	root.Find(e.schema.Detail.Screenshots).Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok {
			return
		}
		abs, err := e.Resolve(href)
		if err != nil {
			return
		}
		out = append(out, abs)
	})
	if len(out) == 0 {
		return nil
	}
	return out
}

// roster lists the space-joined text of each child of the last value node.
func roster(last *goquery.Selection) []string {
	out := []string{}
	last.Contents().Each(func(_ int, child *goquery.Selection) {
		if t := textOf(child, " "); t != "" {
			out = append(out, t)
		}
	})
	return out
}

// nullable keeps JSON null for missing scalars instead of a typed nil pointer.
func nullable(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func splitTrim(s, sep string) []string {
	if sep == "" {
		return []string{strings.TrimSpace(s)}
	}
	parts := strings.Split(s, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
