package models

// PageContent is a readable snapshot of a session's current page
type PageContent struct {
	URL      string   `json:"url"`
	Markdown string   `json:"markdown"`
	Links    []string `json:"links"`
}

// PageForm describes one <form> of a page
type PageForm struct {
	ID     string      `json:"formId,omitempty"`
	Action string      `json:"action"`
	Method string      `json:"method"`
	Fields []FormField `json:"fields"`
}

// FormField is one control inside a form
type FormField struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Label       string `json:"label,omitempty"`
	Placeholder string `json:"placeholder,omitempty"`
}
