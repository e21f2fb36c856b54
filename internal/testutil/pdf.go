// Package testutil builds fixtures shared by package tests.
package testutil

import (
	"bytes"
	"fmt"
	"strings"
)

// PDFInfo is the document information dictionary written by BuildPDF
type PDFInfo struct {
	Title   string
	Author  string
	Subject string
}

// BuildPDF renders a minimal, well-formed PDF with one text line per page.
// Page text must not contain parentheses or backslashes.
func BuildPDF(pages []string, info PDFInfo) []byte {
	objs := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
	}

	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}
	objs = append(objs,
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	)

	for i, text := range pages {
		stream := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
		objs = append(objs,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 5+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream),
		)
	}

	var infoEntries []string
	if info.Title != "" {
		infoEntries = append(infoEntries, fmt.Sprintf("/Title (%s)", info.Title))
	}
	if info.Author != "" {
		infoEntries = append(infoEntries, fmt.Sprintf("/Author (%s)", info.Author))
	}
	if info.Subject != "" {
		infoEntries = append(infoEntries, fmt.Sprintf("/Subject (%s)", info.Subject))
	}
	infoNum := 0
	if len(infoEntries) > 0 {
		objs = append(objs, "<< "+strings.Join(infoEntries, " ")+" >>")
		infoNum = len(objs)
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	offsets := make([]int, len(objs))
	for i, obj := range objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objs)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}

	trailer := fmt.Sprintf("/Size %d /Root 1 0 R", len(objs)+1)
	if infoNum > 0 {
		trailer += fmt.Sprintf(" /Info %d 0 R", infoNum)
	}
	fmt.Fprintf(&buf, "trailer\n<< %s >>\nstartxref\n%d\n%%%%EOF\n", trailer, xref)

	return buf.Bytes()
}
