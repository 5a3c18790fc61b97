package constant

const (
	ChatMessageRoleUser      = "user"
	ChatMessageRoleAssistant = "assistant"

	// User-facing messages for session errors. The API contract promises
	// these exact strings; clients key help text off them.
	MsgNoDocumentUploaded = "Please upload a document first."
	MsgSessionExpired     = "This session has expired. Upload the document again to continue."
	MsgProcessingFailed   = "The document could not be processed. Your previous session is unchanged."
)
