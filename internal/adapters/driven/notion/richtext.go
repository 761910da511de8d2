package notion

import (
	"fmt"
	"strings"

	"github.com/jomei/notionapi"
)

// blockText extracts the plain and formatted text of a block. Block
// types without text content (dividers, images, embeds) yield empty
// strings; the normalizer still versions them by identity and position.
func blockText(block notionapi.Block) (string, string) {
	switch b := block.(type) {
	case *notionapi.ParagraphBlock:
		return richText(b.Paragraph.RichText)
	case *notionapi.Heading1Block:
		return richText(b.Heading1.RichText)
	case *notionapi.Heading2Block:
		return richText(b.Heading2.RichText)
	case *notionapi.Heading3Block:
		return richText(b.Heading3.RichText)
	case *notionapi.BulletedListItemBlock:
		return richText(b.BulletedListItem.RichText)
	case *notionapi.NumberedListItemBlock:
		return richText(b.NumberedListItem.RichText)
	case *notionapi.ToDoBlock:
		return richText(b.ToDo.RichText)
	case *notionapi.ToggleBlock:
		return richText(b.Toggle.RichText)
	case *notionapi.QuoteBlock:
		return richText(b.Quote.RichText)
	case *notionapi.CalloutBlock:
		return richText(b.Callout.RichText)
	case *notionapi.CodeBlock:
		return richText(b.Code.RichText)
	case *notionapi.ChildPageBlock:
		return b.ChildPage.Title, b.ChildPage.Title
	default:
		return "", ""
	}
}

func richText(parts []notionapi.RichText) (string, string) {
	return plainText(parts), formattedText(parts)
}

// plainText concatenates the unformatted text of all rich text parts.
// This is the only input to content hashing.
func plainText(parts []notionapi.RichText) string {
	var sb strings.Builder
	for _, part := range parts {
		sb.WriteString(part.PlainText)
	}
	return sb.String()
}

// formattedText renders rich text parts with markdown-style annotation
// markers so formatting survives storage without a Notion-specific
// schema.
func formattedText(parts []notionapi.RichText) string {
	var sb strings.Builder
	for _, part := range parts {
		sb.WriteString(formatPart(part))
	}
	return sb.String()
}

func formatPart(part notionapi.RichText) string {
	text := part.PlainText
	if a := part.Annotations; a != nil {
		if a.Code {
			text = "`" + text + "`"
		}
		if a.Bold {
			text = "**" + text + "**"
		}
		if a.Italic {
			text = "*" + text + "*"
		}
		if a.Strikethrough {
			text = "~~" + text + "~~"
		}
	}
	if part.Href != "" {
		text = fmt.Sprintf("[%s](%s)", text, part.Href)
	}
	return text
}
