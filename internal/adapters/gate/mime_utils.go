package gate

import (
	"bytes"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"strings"
)

// extractTextFromMessage pulls the plain-text content out of a message
// body. For multipart messages it concatenates the text/plain parts;
// attachments and nested multiparts are skipped.
func extractTextFromMessage(msg *mail.Message) (string, error) {
	contentType := msg.Header.Get("Content-Type")

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		return readBody(msg.Body)
	}
	boundary, ok := params["boundary"]
	if !ok {
		return readBody(msg.Body)
	}

	mr := multipart.NewReader(msg.Body, boundary)
	var text bytes.Buffer
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Truncated or malformed multipart; use whatever text was
			// collected so far.
			break
		}
		partType := strings.ToLower(part.Header.Get("Content-Type"))
		if !strings.Contains(partType, "text/plain") {
			continue
		}
		partBytes, err := io.ReadAll(part)
		if err != nil {
			continue
		}
		text.Write(partBytes)
		text.WriteString("\n")
	}

	if text.Len() == 0 {
		return "[No text content found in multipart message]", nil
	}
	return text.String(), nil
}

func readBody(r io.Reader) (string, error) {
	bodyBytes, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(bodyBytes), nil
}
