package scraper

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"outlier_scout/models"
)

const (
	richItemSelector = "ytd-rich-item-renderer"
	legacySelector   = "ytd-grid-video-renderer, ytd-video-renderer"
)

// Page is what one rendered videos tab yields.
type Page struct {
	Header models.ChannelHeader
	Videos []models.VideoNode
}

var (
	channelNameSelectors = []string{
		"ytd-channel-header-renderer #text",
		"yt-page-header-renderer h1",
		"#channel-name #text",
		"ytd-channel-name #text",
	}
	channelAvatarSelectors = []string{
		"ytd-channel-header-renderer #img",
		"yt-page-header-renderer yt-avatar-shape img",
		"#avatar img",
	}
)

// ParsePage reads the channel header and the video grid out of a captured
// videos tab. Relative links resolve against pageURL.
func ParsePage(pageURL, html string) (*Page, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	page := &Page{Header: parseHeader(doc)}

	items := doc.Find(richItemSelector)
	if items.Length() == 0 {
		items = doc.Find(legacySelector)
	}
	items.Each(func(i int, s *goquery.Selection) {
		page.Videos = append(page.Videos, parseVideoNode(s, base))
	})

	return page, nil
}

func parseHeader(doc *goquery.Document) models.ChannelHeader {
	var h models.ChannelHeader
	for _, sel := range channelNameSelectors {
		if name := strings.TrimSpace(doc.Find(sel).First().Text()); name != "" {
			h.Name = name
			break
		}
	}
	for _, sel := range channelAvatarSelectors {
		if src, ok := doc.Find(sel).First().Attr("src"); ok && strings.TrimSpace(src) != "" {
			h.AvatarURL = strings.TrimSpace(src)
			break
		}
	}
	return h
}

func parseVideoNode(s *goquery.Selection, base *url.URL) models.VideoNode {
	node := models.VideoNode{
		Title: strings.TrimSpace(s.Find("#video-title").First().Text()),
		Text:  visibleText(s),
	}

	link := s.Find("a#video-title-link").First()
	href, ok := link.Attr("href")
	if !ok || href == "" {
		href, _ = s.Find("a#thumbnail").First().Attr("href")
	}
	if href != "" {
		if ref, err := url.Parse(href); err == nil {
			node.Permalink = base.ResolveReference(ref).String()
		}
	}

	img := s.Find("ytd-thumbnail img").First()
	if src, ok := img.Attr("src"); ok && strings.TrimSpace(src) != "" {
		node.Thumbnail = strings.TrimSpace(src)
	} else if src, ok := img.Attr("data-src"); ok {
		node.Thumbnail = strings.TrimSpace(src)
	}

	s.Find("#metadata-line span").Each(func(i int, span *goquery.Selection) {
		if text := strings.TrimSpace(span.Text()); text != "" {
			node.MetaLine = append(node.MetaLine, text)
		}
	})

	return node
}

// visibleText joins the element's text nodes with spaces so that adjacent
// badges and titles do not run together.
func visibleText(s *goquery.Selection) string {
	var parts []string
	var walk func(*goquery.Selection)
	walk = func(sel *goquery.Selection) {
		sel.Contents().Each(func(i int, c *goquery.Selection) {
			switch goquery.NodeName(c) {
			case "#text":
				if t := strings.TrimSpace(c.Text()); t != "" {
					parts = append(parts, t)
				}
			case "script", "style", "#comment":
			default:
				walk(c)
			}
		})
	}
	walk(s)
	return strings.Join(parts, " ")
}
