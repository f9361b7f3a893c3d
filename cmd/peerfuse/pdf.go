package main

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
)

// maxTopicChars bounds study material sent to the server.
const maxTopicChars = 20000

// readTopic resolves study material from a PDF, a text file or the
// command arguments, in that order.
func readTopic(pdfPath, filePath string, args []string) (string, error) {
	var text string
	switch {
	case pdfPath != "":
		t, err := extractPDFText(pdfPath)
		if err != nil {
			return "", err
		}
		text = t
	case filePath != "":
		data, err := os.ReadFile(filePath)
		if err != nil {
			return "", fmt.Errorf("reading file: %w", err)
		}
		text = string(data)
	default:
		text = strings.Join(args, " ")
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("a topic, --file or --pdf is required")
	}
	if r := []rune(text); len(r) > maxTopicChars {
		text = string(r[:maxTopicChars])
	}
	return text, nil
}

func extractPDFText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}
	defer f.Close()

	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}
	text := strings.Join(strings.Fields(buf.String()), " ")
	if text == "" {
		return "", fmt.Errorf("no extractable text in %s", path)
	}
	return text, nil
}
