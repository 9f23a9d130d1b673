package chromedp_render

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/user/designaudit-service/internal/colors"
	"github.com/user/designaudit-service/internal/entity"
	"github.com/user/designaudit-service/internal/repository"
)

// wcagAAContrast is the minimum ratio for normal body text.
const wcagAAContrast = 4.5

// Collector walks a rendered page in one JS pass and produces the raw
// extraction record. It needs the chromedp-backed session; other render
// implementations bring their own collector.
type Collector struct{}

// NewCollector creates a Collector.
func NewCollector() *Collector {
	return &Collector{}
}

// rawElement mirrors one element emitted by the extraction script.
type rawElement struct {
	Tag        string `json:"tag"`
	Selector   string `json:"selector"`
	Text       string `json:"text"`
	FontFamily string `json:"fontFamily"`
	FontSize   string `json:"fontSize"`
	FontWeight string `json:"fontWeight"`
	Color      string `json:"color"`
	Background string `json:"background"`
	// EffBackground is the first non-transparent ancestor background,
	// used for contrast checks.
	EffBackground string `json:"effBackground"`
}

// rawSwatch mirrors one color usage emitted by the extraction script.
type rawSwatch struct {
	Value    string `json:"value"`
	UsedAs   string `json:"usedAs"`
	Tag      string `json:"tag"`
	Selector string `json:"selector"`
	Snippet  string `json:"snippet"`
}

type rawPayload struct {
	Headings   []rawElement `json:"headings"`
	Paragraphs []rawElement `json:"paragraphs"`
	Buttons    []rawElement `json:"buttons"`
	Links      []rawElement `json:"links"`
	Images     []rawElement `json:"images"`
	Swatches   []rawSwatch  `json:"swatches"`
}

// Collect runs the extraction script and converts its output into an
// ExtractionRecord: element buckets, normalized color observations and
// WCAG AA contrast failures.
func (c *Collector) Collect(ctx context.Context, session repository.RenderSession, pageURL string) (*entity.ExtractionRecord, error) {
	s, ok := session.(*Session)
	if !ok {
		return nil, fmt.Errorf("collector requires a chromedp render session, got %T", session)
	}

	var payload rawPayload
	if err := s.eval(ctx, extractionScript, &payload); err != nil {
		return nil, fmt.Errorf("extraction script: %w", err)
	}

	rec := &entity.ExtractionRecord{
		PageURL:     pageURL,
		Headings:    convertElements(payload.Headings),
		Paragraphs:  convertElements(payload.Paragraphs),
		Buttons:     convertElements(payload.Buttons),
		Links:       convertElements(payload.Links),
		Images:      convertElements(payload.Images),
		CMSRendered: s.IsCMSRendered(ctx),
	}

	for _, sw := range payload.Swatches {
		hex, ok := parseCSSColor(sw.Value)
		if !ok {
			continue
		}
		rec.Colors = append(rec.Colors, entity.ColorObservation{
			Hex:            hex,
			UsedAs:         usageOf(sw.UsedAs),
			PageURL:        pageURL,
			ElementTag:     strings.ToLower(sw.Tag),
			Selector:       sw.Selector,
			ContextSnippet: sw.Snippet,
		})
	}

	rec.ContrastFailures = contrastFailures(pageURL,
		payload.Headings, payload.Paragraphs, payload.Buttons, payload.Links)

	return rec, nil
}

// contrastFailures checks every text element with a resolvable
// foreground/background pair against the WCAG AA ratio.
func contrastFailures(pageURL string, buckets ...[]rawElement) []entity.ContrastFailure {
	var failures []entity.ContrastFailure
	for _, bucket := range buckets {
		for _, el := range bucket {
			fgHex, ok := parseCSSColor(el.Color)
			if !ok {
				continue
			}
			bg := el.EffBackground
			if bg == "" {
				bg = el.Background
			}
			bgHex, ok := parseCSSColor(bg)
			if !ok {
				continue
			}

			fg, _ := colors.ParseHex(fgHex)
			bgRGB, _ := colors.ParseHex(bgHex)
			ratio := colors.ContrastRatio(fg, bgRGB)
			if ratio < wcagAAContrast {
				failures = append(failures, entity.ContrastFailure{
					PageURL:    pageURL,
					Selector:   el.Selector,
					Foreground: fgHex,
					Background: bgHex,
					Ratio:      ratio,
				})
			}
		}
	}
	return failures
}

func convertElements(raw []rawElement) []entity.PageElement {
	out := make([]entity.PageElement, 0, len(raw))
	for _, el := range raw {
		pe := entity.PageElement{
			Tag:        strings.ToLower(el.Tag),
			Selector:   el.Selector,
			Text:       el.Text,
			FontFamily: el.FontFamily,
			FontSize:   el.FontSize,
			FontWeight: el.FontWeight,
		}
		if hex, ok := parseCSSColor(el.Color); ok {
			pe.Color = hex
		}
		if hex, ok := parseCSSColor(el.Background); ok {
			pe.Background = hex
		}
		out = append(out, pe)
	}
	return out
}

func usageOf(s string) entity.ColorUsage {
	switch s {
	case "background":
		return entity.UsageBackground
	case "border":
		return entity.UsageBorder
	case "fill":
		return entity.UsageFill
	default:
		return entity.UsageText
	}
}

// parseCSSColor normalizes a computed CSS color value ("rgb(...)",
// "rgba(...)" or hex) to "#rrggbb". Fully transparent values and
// anything unparseable report false.
func parseCSSColor(value string) (string, bool) {
	v := strings.TrimSpace(strings.ToLower(value))
	if v == "" || v == "transparent" {
		return "", false
	}
	if strings.HasPrefix(v, "#") {
		if hex := colors.NormalizeHex(v); hex != "" {
			return hex, true
		}
		return "", false
	}
	if !strings.HasPrefix(v, "rgb") {
		return "", false
	}

	open := strings.IndexByte(v, '(')
	end := strings.IndexByte(v, ')')
	if open < 0 || end <= open {
		return "", false
	}

	parts := strings.Split(v[open+1:end], ",")
	if len(parts) < 3 {
		return "", false
	}

	var ch [3]int
	for i := 0; i < 3; i++ {
		n, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil || n < 0 || n > 255 {
			return "", false
		}
		ch[i] = n
	}

	if len(parts) >= 4 {
		alpha, err := strconv.ParseFloat(strings.TrimSpace(parts[3]), 64)
		if err == nil && alpha == 0 {
			return "", false
		}
	}

	return colors.RGB{R: ch[0], G: ch[1], B: ch[2]}.Hex(), true
}

// extractionScript is the single-pass page walk. Element counts are
// capped so pathological pages cannot blow up the payload.
const extractionScript = `(() => {
	const cap = (list, n) => Array.prototype.slice.call(list, 0, n);

	const pathOf = (el) => {
		const parts = [];
		let cur = el;
		while (cur && cur.nodeType === 1 && parts.length < 6) {
			let part = cur.tagName.toLowerCase();
			if (cur.id) { parts.unshift(part + '#' + cur.id); break; }
			const parent = cur.parentElement;
			if (parent) {
				const siblings = Array.prototype.filter.call(parent.children, c => c.tagName === cur.tagName);
				if (siblings.length > 1) part += ':nth-of-type(' + (siblings.indexOf(cur) + 1) + ')';
			}
			parts.unshift(part);
			cur = parent;
		}
		return parts.join(' > ');
	};

	const effBackground = (el) => {
		let cur = el;
		while (cur && cur.nodeType === 1) {
			const bg = getComputedStyle(cur).backgroundColor;
			if (bg && bg !== 'transparent' && !/rgba\(\s*\d+\s*,\s*\d+\s*,\s*\d+\s*,\s*0\s*\)/.test(bg)) return bg;
			cur = cur.parentElement;
		}
		return 'rgb(255, 255, 255)';
	};

	const describe = (el) => {
		const cs = getComputedStyle(el);
		return {
			tag: el.tagName,
			selector: pathOf(el),
			text: (el.textContent || '').trim().slice(0, 120),
			fontFamily: cs.fontFamily,
			fontSize: cs.fontSize,
			fontWeight: cs.fontWeight,
			color: cs.color,
			background: cs.backgroundColor,
			effBackground: effBackground(el),
		};
	};

	const headings = cap(document.querySelectorAll('h1,h2,h3,h4,h5,h6'), 200).map(describe);
	const paragraphs = cap(document.querySelectorAll('p'), 300).map(describe);
	const buttons = cap(document.querySelectorAll('button,[role="button"],input[type="submit"],a.button,a.btn'), 200).map(describe);
	const links = cap(document.querySelectorAll('a[href]'), 400).map(describe);
	const images = cap(document.querySelectorAll('img'), 200).map(describe);

	const swatches = [];
	const push = (el, value, usedAs) => {
		if (!value) return;
		swatches.push({
			value: value,
			usedAs: usedAs,
			tag: el.tagName,
			selector: pathOf(el),
			snippet: (el.textContent || '').trim().slice(0, 60),
		});
	};
	for (const el of cap(document.querySelectorAll('*'), 2000)) {
		const cs = getComputedStyle(el);
		push(el, cs.backgroundColor, 'background');
		push(el, cs.color, 'text');
		if (cs.borderTopStyle !== 'none' && parseFloat(cs.borderTopWidth) > 0) {
			push(el, cs.borderTopColor, 'border');
		}
		if (el instanceof SVGElement && cs.fill && cs.fill !== 'none') {
			push(el, cs.fill, 'fill');
		}
	}

	return { headings, paragraphs, buttons, links, images, swatches };
})()`
