package protocol

type MessageType uint16

const (
	TypeError        MessageType = 1
	TypeAck          MessageType = 2
	TypeSystemNotice MessageType = 3

	TypeChatMessage MessageType = 10
	TypeUserJoined  MessageType = 11
	TypeUserLeft    MessageType = 12
	TypeChatStats   MessageType = 13

	TypeClassifyRequest MessageType = 20
	TypeClassifyResult  MessageType = 21
	TypeStreamStart     MessageType = 22
	TypeStreamStop      MessageType = 23
	TypeStreamUpdate    MessageType = 24
	TypeStreamComplete  MessageType = 25
)

// Group names for hub subscriptions.
const (
	GroupGeneral = "general"
	GroupChat    = "chat"
	GroupML      = "ml"
	GroupStats   = "stats"
)

type Error struct {
	Code    string `msgpack:"code" json:"code"`
	Message string `msgpack:"message" json:"message"`
}

type SystemNotice struct {
	Message       string `msgpack:"message" json:"message"`
	Sender        string `msgpack:"sender" json:"sender"`
	Timestamp     int64  `msgpack:"timestamp" json:"timestamp"`
	ClientsOnline int    `msgpack:"clientsOnline,omitempty" json:"clientsOnline,omitempty"`
}

type ChatMessage struct {
	ID            string `msgpack:"id" json:"id"`
	Sender        string `msgpack:"sender" json:"sender"`
	Content       string `msgpack:"content" json:"content"`
	Category      string `msgpack:"category,omitempty" json:"category,omitempty"`
	Timestamp     int64  `msgpack:"timestamp" json:"timestamp"`
	ClientsOnline int    `msgpack:"clientsOnline,omitempty" json:"clientsOnline,omitempty"`
}

type ChatStats struct {
	Timestamp   int64            `msgpack:"timestamp" json:"timestamp"`
	GroupCounts map[string]int   `msgpack:"groupCounts" json:"groupCounts"`
	ChatClients []ChatClientInfo `msgpack:"chatClients" json:"chatClients"`
}

type ChatClientInfo struct {
	ClientID     string `msgpack:"clientId" json:"clientId"`
	ConnectedAt  int64  `msgpack:"connectedAt" json:"connectedAt"`
	MessageCount int    `msgpack:"messageCount" json:"messageCount"`
}

type ClassifyRequest struct {
	RequestID string             `msgpack:"requestId" json:"requestId"`
	ModelType string             `msgpack:"modelType" json:"modelType"`
	Features  map[string]float64 `msgpack:"features" json:"features"`
}

type ClassifyResult struct {
	RequestID      string             `msgpack:"requestId" json:"requestId"`
	ModelType      string             `msgpack:"modelType" json:"modelType"`
	Classification string             `msgpack:"classification" json:"classification"`
	Confidence     float64            `msgpack:"confidence" json:"confidence"`
	Probabilities  map[string]float64 `msgpack:"probabilities" json:"probabilities"`
	Timestamp      int64              `msgpack:"timestamp" json:"timestamp"`
}

type StreamStart struct {
	RequestID  string             `msgpack:"requestId" json:"requestId"`
	ModelType  string             `msgpack:"modelType" json:"modelType"`
	Features   map[string]float64 `msgpack:"features,omitempty" json:"features,omitempty"`
	IntervalMs int                `msgpack:"intervalMs,omitempty" json:"intervalMs,omitempty"`
}

type StreamStop struct {
	StreamID string `msgpack:"streamId" json:"streamId"`
}

type StreamUpdate struct {
	StreamID   string  `msgpack:"streamId" json:"streamId"`
	Sequence   int     `msgpack:"sequence" json:"sequence"`
	ModelType  string  `msgpack:"modelType" json:"modelType"`
	Prediction float64 `msgpack:"prediction" json:"prediction"`
	Label      string  `msgpack:"label" json:"label"`
	Timestamp  int64   `msgpack:"timestamp" json:"timestamp"`
}

type StreamComplete struct {
	StreamID string `msgpack:"streamId" json:"streamId"`
	Sent     int    `msgpack:"sent" json:"sent"`
}
