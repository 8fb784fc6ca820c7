// Package prompt renders the system and user messages sent to the
// completion backend. The system message carries the operation's
// strategy rules and the canonical JSON response schema; the user
// message carries the text, the token targets, and the requested
// style knobs.
package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/metasphere-xyz/texttransform/internal/budget"
	"github.com/metasphere-xyz/texttransform/internal/plan"
	"github.com/metasphere-xyz/texttransform/internal/request"
)

// DefaultStyle is written into the prompt when a request names none.
const DefaultStyle = "professional"

// Messages is one system/user pair ready for the chat API.
type Messages struct {
	System string
	User   string
}

// Build renders the messages for a planned request. It consumes the
// style knobs (style, tone, aspects, fragment_style) so they do not
// surface as unused parameters.
func Build(r *request.OperationRequest, p plan.Plan) Messages {
	mode := modeFor(r, p)
	return Messages{
		System: systemMessage(r.Operation, mode),
		User:   userMessage(r, p, mode),
	}
}

const (
	modeBase      = "base"
	modeStaggered = "staggered"
	modeFragment  = "fragment"
)

func modeFor(r *request.OperationRequest, p plan.Plan) string {
	if !r.Cohesive {
		return modeFragment
	}
	if p.Staggered() {
		return modeStaggered
	}
	return modeBase
}

func systemMessage(op plan.Operation, mode string) string {
	switch op {
	case plan.OpExpand:
		switch mode {
		case modeFragment:
			return expandFragment
		case modeStaggered:
			return expandStaggered
		default:
			return expandBase
		}
	case plan.OpCompress:
		switch mode {
		case modeFragment:
			return compressFragment
		case modeStaggered:
			return compressStaggered
		default:
			return compressBase
		}
	default:
		if mode == modeFragment {
			return rephraseFragment
		}
		return rephraseBase
	}
}

func userMessage(r *request.OperationRequest, p plan.Plan, mode string) string {
	style := consumeString(r, "style", DefaultStyle)
	tone := consumeString(r, "tone", "")
	aspects := consumeStrings(r, "aspects")
	fragStyle := consumeString(r, "fragment_style", "")

	var sb strings.Builder
	sb.WriteString(opening(r.Operation, p, mode, len(r.Fragments)))
	sb.WriteString("\nStyle: ")
	sb.WriteString(style)
	sb.WriteString("\n\n")

	if mode == modeFragment {
		sb.WriteString("Original fragments:\n")
		for i, f := range r.Fragments {
			sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, f))
		}
	} else {
		sb.WriteString(fmt.Sprintf("Original text (%d tokens):\n", budget.EstimateTokens(r.OriginalText())))
		sb.WriteString(r.OriginalText())
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	sb.WriteString(skeletonHeading(r.Operation, mode))
	sb.WriteString("\n")
	sb.WriteString(renderSkeleton(r, p))
	sb.WriteString("\n")

	sb.WriteString("\nIMPORTANT:")
	for _, line := range requirementLines(r.Operation, mode) {
		sb.WriteString("\n- ")
		sb.WriteString(line)
	}
	if tone != "" {
		sb.WriteString("\n- Use ")
		sb.WriteString(tone)
		sb.WriteString(" tone")
	}
	if len(aspects) > 0 {
		sb.WriteString("\n- Focus on ")
		sb.WriteString(strings.Join(aspects, ", "))
	}
	if mode == modeFragment && fragStyle != "" {
		sb.WriteString("\n- Format each fragment as ")
		sb.WriteString(fragmentStyleHint(fragStyle))
	}
	return sb.String()
}

func opening(op plan.Operation, p plan.Plan, mode string, fragments int) string {
	n := p.VersionsPerLength()
	switch op {
	case plan.OpRephrase:
		if mode == modeFragment {
			return fmt.Sprintf("Create %d unique rephrased version(s) for each of these %d fragments.", n, fragments)
		}
		return fmt.Sprintf("Create %d unique rephrased version(s) of this text.", n)
	case plan.OpExpand:
		switch mode {
		case modeFragment:
			return fmt.Sprintf("Expand these %d text fragments.", fragments)
		case modeStaggered:
			return fmt.Sprintf("Create %d version(s) at each progressive length.", n)
		default:
			return fmt.Sprintf("Expand this text to create %d version(s) at each target length.", n)
		}
	default:
		switch mode {
		case modeFragment:
			return fmt.Sprintf("Compress these %d text fragments.", fragments)
		case modeStaggered:
			return fmt.Sprintf("Create %d version(s) at each progressive compression length.", n)
		default:
			return fmt.Sprintf("Compress this text to create %d version(s) at each target length.", n)
		}
	}
}

func skeletonHeading(op plan.Operation, mode string) string {
	if op == plan.OpRephrase {
		return "Response structure:"
	}
	switch mode {
	case modeFragment:
		return "Target lengths and versions per fragment:"
	case modeStaggered:
		return "Progressive lengths and versions:"
	default:
		return "Target lengths and versions:"
	}
}

func requirementLines(op plan.Operation, mode string) []string {
	if op == plan.OpRephrase {
		lines := []string{
			"Use different sentence structures",
			"Replace words with synonyms where appropriate",
			"Keep technical terms unchanged",
			"Maintain exact meaning and tone",
		}
		if mode == modeFragment {
			lines = append(lines, "Rephrase each fragment independently, never merge them")
		}
		return lines
	}
	lines := []string{
		"Match token counts exactly",
		"Make versions at same length unique",
	}
	switch mode {
	case modeFragment:
		lines = append(lines, "Keep fragments independent")
	case modeStaggered:
		if op == plan.OpExpand {
			lines = append(lines, "Each length must build upon previous ones")
		} else {
			lines = append(lines, "Each length must be more compressed than previous")
		}
	}
	if op == plan.OpExpand {
		lines = append(lines, "Preserve original meaning")
	} else {
		lines = append(lines, "Preserve core meaning")
	}
	return lines
}

func fragmentStyleHint(style string) string {
	switch style {
	case "bullet":
		return "bullet points"
	case "outline":
		return "a structured outline"
	default:
		return "flowing narrative"
	}
}

// consumeString pulls a string param, falling back when absent or
// mistyped. Type errors were already rejected upstream.
func consumeString(r *request.OperationRequest, key, fallback string) string {
	s, ok, err := r.Str(key)
	if !ok || err != nil {
		return fallback
	}
	return s
}

func consumeStrings(r *request.OperationRequest, key string) []string {
	list, ok, err := r.Strs(key)
	if !ok || err != nil {
		return nil
	}
	return list
}

type versionStub struct {
	Text string `json:"text"`
}

type lengthStub struct {
	TargetPercentage int           `json:"target_percentage"`
	TargetTokens     int           `json:"target_tokens"`
	Versions         []versionStub `json:"versions"`
}

type fragmentStub struct {
	Lengths []lengthStub `json:"lengths"`
}

func lengthStubs(origTokens int, p plan.Plan) []lengthStub {
	out := make([]lengthStub, 0, len(p.Targets))
	for _, t := range p.Targets {
		versions := make([]versionStub, t.VersionsPerLength)
		for i := range versions {
			versions[i] = versionStub{Text: fmt.Sprintf("version %d at %d%%", i+1, t.TargetPercentage)}
		}
		out = append(out, lengthStub{
			TargetPercentage: t.TargetPercentage,
			TargetTokens:     budget.TargetTokens(origTokens, t.TargetPercentage),
			Versions:         versions,
		})
	}
	return out
}

// renderSkeleton shows the model the exact JSON shape expected back,
// with per-length token targets computed from the input.
func renderSkeleton(r *request.OperationRequest, p plan.Plan) string {
	if r.Cohesive {
		doc := struct {
			Lengths []lengthStub `json:"lengths"`
		}{Lengths: lengthStubs(budget.EstimateTokens(r.OriginalText()), p)}
		b, _ := json.MarshalIndent(doc, "", "  ")
		return string(b)
	}
	frags := make([]fragmentStub, 0, len(r.Fragments))
	for _, f := range r.Fragments {
		frags = append(frags, fragmentStub{Lengths: lengthStubs(budget.EstimateTokens(f), p)})
	}
	doc := struct {
		Fragments []fragmentStub `json:"fragments"`
	}{Fragments: frags}
	b, _ := json.MarshalIndent(doc, "", "  ")
	return string(b)
}
