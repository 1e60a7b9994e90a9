package texttospeech

import (
	"bytes"
	"encoding/xml"
)

// BuildSSML wraps text in a speak/voice document. text is escaped, so reply
// text containing markup characters cannot break the document.
func BuildSSML(text string, voice Voice) string {
	if voice.Language == "" {
		voice.Language = DefaultLanguage
	}

	var buf bytes.Buffer
	buf.WriteString("<speak version='1.0' xml:lang='")
	escape(&buf, voice.Language)
	buf.WriteString("'><voice xml:lang='")
	escape(&buf, voice.Language)
	buf.WriteString("'")
	if voice.Gender != "" {
		buf.WriteString(" xml:gender='")
		escape(&buf, voice.Gender)
		buf.WriteString("'")
	}
	buf.WriteString(" name='")
	escape(&buf, voice.Name)
	buf.WriteString("'>")
	escape(&buf, text)
	buf.WriteString("</voice></speak>")

	return buf.String()
}

func escape(buf *bytes.Buffer, s string) {
	// EscapeText only fails when the writer does; bytes.Buffer never does.
	_ = xml.EscapeText(buf, []byte(s))
}
