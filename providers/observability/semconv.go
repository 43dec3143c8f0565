package observability

// Semantic conventions for attribute keys, span names, event names and
// metric names emitted by the client, the adapters and the transport.

// --- LLM Attributes ---

const (
	// AttrLLMProvider is the adapter name ("gemini", "openai")
	AttrLLMProvider = "llm.provider"

	// AttrLLMModel is the model identifier
	AttrLLMModel = "llm.model"

	// AttrLLMOperation is the facade operation (generate, stream, count_tokens, list_models, get_model)
	AttrLLMOperation = "llm.operation"

	// AttrLLMResponseID is the response identifier reported by the provider
	AttrLLMResponseID = "llm.response.id"

	// AttrLLMFinishReason is the unified finish reason of the first candidate
	AttrLLMFinishReason = "llm.finish_reason"

	// AttrLLMCandidates is the number of candidates returned
	AttrLLMCandidates = "llm.candidates"

	// AttrLLMWarnings lists parameters dropped or remapped while building the request
	AttrLLMWarnings = "llm.warnings"

	// AttrLLMStreamChunks is the number of chunks a stream delivered
	AttrLLMStreamChunks = "llm.stream.chunks"

	// AttrLLMModelsCount is the number of models listed
	AttrLLMModelsCount = "llm.models.count"
)

// --- Token Usage Attributes ---

const (
	// AttrLLMTokensPrompt is the number of prompt tokens
	AttrLLMTokensPrompt = "llm.tokens.prompt" // #nosec G101 -- Not a credential, token refers to LLM tokens

	// AttrLLMTokensCompletion is the number of completion tokens
	AttrLLMTokensCompletion = "llm.tokens.completion" // #nosec G101 -- Not a credential, token refers to LLM tokens

	// AttrLLMTokensTotal is the total number of tokens
	AttrLLMTokensTotal = "llm.tokens.total" // #nosec G101 -- Not a credential, token refers to LLM tokens
)

// --- Request Attributes ---

const (
	// AttrRequestMessagesCount is the number of messages in the request
	AttrRequestMessagesCount = "request.messages_count"
)

// --- HTTP Attributes ---

const (
	AttrHTTPMethod           = "http.method"
	AttrHTTPStatusCode       = "http.status_code"
	AttrHTTPURL              = "http.url"
	AttrHTTPRequestID        = "http.request_id"
	AttrHTTPRequestBodySize  = "http.request.body.size"
	AttrHTTPResponseBodySize = "http.response.body.size"
	AttrHTTPDuration         = "http.request.duration"
)

// --- General Attributes ---

const (
	AttrError             = "error"
	AttrErrorType         = "error.type"
	AttrDuration          = "duration"
	AttrStatus            = "status"
	AttrStatusDescription = "status_description"
)

// --- Span Names ---

const (
	SpanClientGenerate    = "client.generate"
	SpanClientStream      = "client.generate_streamed"
	SpanClientCountTokens = "client.count_tokens"
	SpanClientListModels  = "client.list_models"
	SpanClientGetModel    = "client.get_model"
)

// --- Event Names ---

const (
	EventHTTPRequestPrepared  = "http.request.prepared"
	EventHTTPRequestError     = "http.request.error"
	EventHTTPResponseReceived = "http.response.received"
	EventHTTPStreamStarted    = "http.stream.started"
)

// --- Metric Names ---

const (
	MetricClientRequestCount     = "unillm.client.request.count"
	MetricClientRequestDuration  = "unillm.client.request.duration"
	MetricClientTokensTotal      = "unillm.client.tokens.total"
	MetricClientTokensPrompt     = "unillm.client.tokens.prompt"
	MetricClientTokensCompletion = "unillm.client.tokens.completion"
)
