package models

const (
	// MetaSource is always present on an index entry; MetaPage only when the
	// source format has pages (pdf) or sheets/slides (xlsx, ods, pptx).
	MetaSource = "source"
	MetaPage   = "page"
)

var (
	SystemPrompt = `You are a helpful assistant. When a question may be answered from the user's document collection, call the rag_query tool with the question and ground your answer in the returned passages. Only call the tool when you need it.`
)
