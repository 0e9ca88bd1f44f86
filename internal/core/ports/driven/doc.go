// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - Extractor / ExtractorRegistry: Turns a stored file into text
//   - Chunker: Splits text into retrievable segments
//   - EmbeddingService: Generates vector embeddings
//   - EmbeddingStore: Persists embeddings by (document, chunk) key
//   - DocumentStore: Document and chunk persistence
//   - ConversationStore: Conversation and message persistence
//   - FileStore: Uploaded file storage
//   - TaskQueue: Background task dispatch
//   - ConfigStore: Application configuration
//   - PromptStore: Customisable answer instructions
//
// # Optional Interfaces
//
//   - LLMService: Language model. Without it queries cannot be answered.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or extractor package
package driven
