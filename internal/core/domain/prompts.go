package domain

// Instructions framing the answer prompt.
const (
	// AnswerSystemInstruction opens every answer prompt.
	AnswerSystemInstruction = "You are an AI assistant that helps users with their documents. " +
		"Answer the following question based on the provided context information and previous conversation. " +
		"If the context doesn't contain relevant information, just say that you don't have enough information " +
		"to answer accurately."

	// AnswerClosingInstruction ends every answer prompt.
	AnswerClosingInstruction = "Answer the question precisely based on the context. " +
		"If the context doesn't have relevant information, acknowledge this and suggest what additional " +
		"information might be helpful."
)
