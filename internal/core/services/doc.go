// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// Indexing and answering run as background tasks on a driven.TaskQueue.
// The indexing task claims a pending document, extracts, chunks and embeds
// it. The answer task retrieves similar chunks and asks the language model,
// retrying with backoff before writing an apology into the conversation.
package services
