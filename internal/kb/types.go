package kb

// Wire types for the knowledge base HTTP API. The shapes follow the
// Notion page/database model: pages live in database collections, carry
// named property values, and hold their content as child blocks.

// Page is a create-page request.
type Page struct {
	Parent     Parent          `json:"parent"`
	Icon       *Icon           `json:"icon,omitempty"`
	Properties map[string]Prop `json:"properties"`
	Children   []Block         `json:"children,omitempty"`
}

// Parent names the collection a page is created in.
type Parent struct {
	DatabaseID string `json:"database_id"`
}

// Icon is a record-level emoji glyph.
type Icon struct {
	Type  string `json:"type"`
	Emoji string `json:"emoji"`
}

// EmojiIcon builds a record-level icon from a glyph.
func EmojiIcon(glyph string) *Icon {
	return &Icon{Type: "emoji", Emoji: glyph}
}

// Prop is one property value. Exactly one field is set; the rest
// marshal away.
type Prop struct {
	Title       []RichText     `json:"title,omitempty"`
	RichText    []RichText     `json:"rich_text,omitempty"`
	MultiSelect []SelectOption `json:"multi_select,omitempty"`
	Select      *SelectOption  `json:"select,omitempty"`
	Date        *DateValue     `json:"date,omitempty"`
	Relation    []Relation     `json:"relation,omitempty"`
}

// RichText is one text span. Requests fill Text; responses additionally
// carry the rendered PlainText.
type RichText struct {
	Type      string   `json:"type"`
	Text      TextSpan `json:"text"`
	PlainText string   `json:"plain_text,omitempty"`
}

// TextSpan is the raw content of a rich text span.
type TextSpan struct {
	Content string `json:"content"`
}

// Text builds a single-span rich text value.
func Text(content string) []RichText {
	return []RichText{{Type: "text", Text: TextSpan{Content: content}}}
}

// SelectOption is one select or multi-select choice.
type SelectOption struct {
	Name string `json:"name"`
}

// DateValue is a calendar date property value (YYYY-MM-DD).
type DateValue struct {
	Start string `json:"start"`
}

// Relation points at another page by id.
type Relation struct {
	ID string `json:"id"`
}

// Block is one content block: body paragraphs, bulleted insights, or
// unchecked action items.
type Block struct {
	Object    string     `json:"object"`
	Type      string     `json:"type"`
	Paragraph *Paragraph `json:"paragraph,omitempty"`
	Bulleted  *Paragraph `json:"bulleted_list_item,omitempty"`
	ToDo      *ToDo      `json:"to_do,omitempty"`
}

// Paragraph holds a text block's content.
type Paragraph struct {
	RichText []RichText `json:"rich_text"`
}

// ToDo holds a checkbox block's content.
type ToDo struct {
	RichText []RichText `json:"rich_text"`
	Checked  bool       `json:"checked"`
}

// ParagraphBlock builds a paragraph block from plain text.
func ParagraphBlock(content string) Block {
	return Block{
		Object:    "block",
		Type:      "paragraph",
		Paragraph: &Paragraph{RichText: Text(content)},
	}
}

// BulletBlock builds a bulleted list item from plain text.
func BulletBlock(content string) Block {
	return Block{
		Object:   "block",
		Type:     "bulleted_list_item",
		Bulleted: &Paragraph{RichText: Text(content)},
	}
}

// ToDoBlock builds an unchecked to-do item from plain text.
func ToDoBlock(content string) Block {
	return Block{
		Object: "block",
		Type:   "to_do",
		ToDo:   &ToDo{RichText: Text(content)},
	}
}

// PageRef is the server's view of a page.
type PageRef struct {
	ID         string          `json:"id"`
	Archived   bool            `json:"archived"`
	InTrash    bool            `json:"in_trash"`
	Properties map[string]Prop `json:"properties"`
}

// DatabaseQuery is a query-collection request.
type DatabaseQuery struct {
	StartCursor string `json:"start_cursor,omitempty"`
	PageSize    int    `json:"page_size,omitempty"`
}

// QueryResult is one page of query results.
type QueryResult struct {
	Results    []PageRef `json:"results"`
	HasMore    bool      `json:"has_more"`
	NextCursor string    `json:"next_cursor"`
}

// plain flattens a rich text value to its text content. Responses carry
// PlainText; requests built locally only have the span content.
func plain(spans []RichText) string {
	var out string
	for _, s := range spans {
		if s.PlainText != "" {
			out += s.PlainText
		} else {
			out += s.Text.Content
		}
	}
	return out
}
