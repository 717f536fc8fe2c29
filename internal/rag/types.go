package rag

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// AskRequest is the payload posted to the ask endpoint
type AskRequest struct {
	Question string `json:"question"`
	Debug    bool   `json:"debug,omitempty"`
}

// Answer is a successful ask response
type Answer struct {
	Answer         string   `json:"answer"`
	Sources        []Source `json:"sources,omitempty"`
	ProcessingTime *float64 `json:"processing_time,omitempty"`
}

// Source is a passage the service cited for an answer
type Source struct {
	Page    Page   `json:"page"`
	Excerpt string `json:"excerpt"`
}

// Page is a page reference that the service sends either as a number or as a string.
type Page string

// UnmarshalJSON accepts 12, 12.0, "12" and "iv".
func (p *Page) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*p = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = Page(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	if i, err := n.Int64(); err == nil {
		*p = Page(strconv.FormatInt(i, 10))
		return nil
	}
	*p = Page(n.String())
	return nil
}

// Health is the result of a successful health check
type Health struct {
	StatusCode int
	Document   string
}

// healthBody lists the keys the service variants use for the loaded document.
type healthBody struct {
	Status     string `json:"status"`
	Document   string `json:"document"`
	DocumentID string `json:"document_id"`
	DocID      string `json:"doc_id"`
	PDF        string `json:"pdf"`
}

func (b healthBody) document() string {
	for _, v := range []string{b.Document, b.DocumentID, b.DocID, b.PDF} {
		if v != "" {
			return v
		}
	}
	return ""
}

// errorBody covers the error envelopes the service may return.
type errorBody struct {
	Detail  any    `json:"detail"`
	Message string `json:"message"`
	Error   string `json:"error"`
}
