package chromedp_render

import (
	"context"
	"fmt"

	"github.com/user/designaudit-service/internal/entity"
	"github.com/user/designaudit-service/internal/repository"
)

// minTapTargetPx is the smallest acceptable tap target dimension.
const minTapTargetPx = 40

// MobileAuditorImpl runs the mobile-usability pass against an already
// rendered, mobile-emulated session. It is sequenced after the style
// pass because it consumes that pass's contrast data.
type MobileAuditorImpl struct{}

// NewMobileAuditor creates a MobileAuditorImpl.
func NewMobileAuditor() *MobileAuditorImpl {
	return &MobileAuditorImpl{}
}

type rawMobilePayload struct {
	ViewportMeta string `json:"viewportMeta"`
	Overflow     bool   `json:"overflow"`
	SmallTargets []struct {
		Selector string  `json:"selector"`
		Width    float64 `json:"width"`
		Height   float64 `json:"height"`
	} `json:"smallTargets"`
	TinyText []struct {
		Selector string  `json:"selector"`
		FontSize float64 `json:"fontSize"`
	} `json:"tinyText"`
}

// Audit inspects the emulated viewport for mobile-usability issues and
// folds in the low-contrast findings from the style pass, which hit
// harder on small sunlit screens.
func (a *MobileAuditorImpl) Audit(ctx context.Context, session repository.RenderSession, pageURL string, contrast []entity.ContrastFailure) (*entity.MobileAudit, error) {
	s, ok := session.(*Session)
	if !ok {
		return nil, fmt.Errorf("mobile auditor requires a chromedp render session, got %T", session)
	}

	var payload rawMobilePayload
	if err := s.eval(ctx, mobileAuditScript, &payload); err != nil {
		return nil, fmt.Errorf("mobile audit script: %w", err)
	}

	audit := &entity.MobileAudit{ViewportMeta: payload.ViewportMeta}

	if payload.ViewportMeta == "" {
		audit.Issues = append(audit.Issues, entity.MobileIssue{
			Kind:   "missing_viewport_meta",
			Detail: "page has no <meta name=\"viewport\">; mobile browsers will render the desktop layout",
		})
	}
	if payload.Overflow {
		audit.Issues = append(audit.Issues, entity.MobileIssue{
			Kind:   "horizontal_overflow",
			Detail: "content is wider than the mobile viewport and forces horizontal scrolling",
		})
	}
	for _, t := range payload.SmallTargets {
		audit.Issues = append(audit.Issues, entity.MobileIssue{
			Kind:     "small_tap_target",
			Selector: t.Selector,
			Detail:   fmt.Sprintf("tap target is %.0fx%.0fpx, below the %dpx minimum", t.Width, t.Height, minTapTargetPx),
		})
	}
	for _, t := range payload.TinyText {
		audit.Issues = append(audit.Issues, entity.MobileIssue{
			Kind:     "tiny_text",
			Selector: t.Selector,
			Detail:   fmt.Sprintf("font size %.1fpx is hard to read on mobile", t.FontSize),
		})
	}
	for _, cf := range contrast {
		audit.Issues = append(audit.Issues, entity.MobileIssue{
			Kind:     "low_contrast",
			Selector: cf.Selector,
			Detail:   fmt.Sprintf("contrast ratio %.2f between %s and %s", cf.Ratio, cf.Foreground, cf.Background),
		})
	}

	return audit, nil
}

const mobileAuditScript = `(() => {
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

	const meta = document.querySelector('meta[name="viewport"]');
	const viewportMeta = meta ? (meta.getAttribute('content') || '') : '';

	const overflow = document.documentElement.scrollWidth > window.innerWidth + 1;

	const smallTargets = [];
	for (const el of Array.prototype.slice.call(document.querySelectorAll('a[href],button,[role="button"],input[type="submit"]'), 0, 300)) {
		const r = el.getBoundingClientRect();
		if (r.width === 0 || r.height === 0) continue;
		if (r.width < 40 || r.height < 40) {
			smallTargets.push({ selector: pathOf(el), width: r.width, height: r.height });
		}
		if (smallTargets.length >= 50) break;
	}

	const tinyText = [];
	for (const el of Array.prototype.slice.call(document.querySelectorAll('p,span,li,a'), 0, 500)) {
		if (!(el.textContent || '').trim()) continue;
		const size = parseFloat(getComputedStyle(el).fontSize);
		if (size > 0 && size < 12) {
			tinyText.push({ selector: pathOf(el), fontSize: size });
		}
		if (tinyText.length >= 50) break;
	}

	return { viewportMeta, overflow, smallTargets, tinyText };
})()`
