// groq-stub is an offline stand-in for an OpenAI-compatible chat
// backend. It reads the response skeleton embedded in the user message
// and echoes it back with every version filled to its token target, so
// the daemon can be exercised end to end without network access.
package main

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strings"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
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

type skeleton struct {
	Lengths   []lengthStub   `json:"lengths"`
	Fragments []fragmentStub `json:"fragments"`
}

var lexicon = []string{"alpha", "bravo", "charlie", "delta", "echo", "foxtrot", "golf", "hotel"}

// fillText produces exactly tokens words, offset by the version index
// so sibling versions differ.
func fillText(version, tokens int) string {
	if tokens < 1 {
		tokens = 1
	}
	words := make([]string, tokens)
	for i := range words {
		words[i] = lexicon[(version+i)%len(lexicon)]
	}
	return strings.Join(words, " ")
}

func fillLengths(ls []lengthStub) {
	for i := range ls {
		for v := range ls[i].Versions {
			ls[i].Versions[v].Text = fillText(v, ls[i].TargetTokens)
		}
	}
}

// completionFor parses the skeleton out of the user message and fills
// it in. The second return is false when no skeleton is found.
func completionFor(user string) (string, bool) {
	start := strings.Index(user, "{")
	end := strings.LastIndex(user, "}")
	if start < 0 || end <= start {
		return "", false
	}
	var sk skeleton
	if err := json.Unmarshal([]byte(user[start:end+1]), &sk); err != nil {
		return "", false
	}
	if len(sk.Fragments) > 0 {
		for i := range sk.Fragments {
			fillLengths(sk.Fragments[i].Lengths)
		}
		b, _ := json.Marshal(map[string]any{"fragments": sk.Fragments})
		return string(b), true
	}
	if len(sk.Lengths) == 0 {
		return "", false
	}
	fillLengths(sk.Lengths)
	b, _ := json.Marshal(map[string]any{"lengths": sk.Lengths})
	return string(b), true
}

func main() {
	model := os.Getenv("MODEL_ID")
	if strings.TrimSpace(model) == "" {
		model = "test-model"
	}
	addr := os.Getenv("ADDR")
	if strings.TrimSpace(addr) == "" {
		addr = ":8081"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"id": model, "object": "model"}},
		})
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var req chatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		user := ""
		for _, m := range req.Messages {
			if m.Role == "user" {
				user = m.Content
			}
		}
		content, ok := completionFor(user)
		if !ok {
			http.Error(w, "no response skeleton in prompt", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": content}},
			},
		})
	})

	log.Printf("groq-stub listening on %s (model=%s)", addr, model)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatal(err)
	}
}
