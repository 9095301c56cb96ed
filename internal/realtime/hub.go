package realtime

// subscription ties a client to the one topic it wants.
type subscription struct {
	client *Client
	topic  string
}

// topicMessage is a payload scoped to a single topic.
type topicMessage struct {
	topic string
	data  []byte
}

// Hub owns per-topic subscriber sets. Clients register with a topic and only
// ever receive messages published to that topic; a session's viewers never
// see another session's traffic.
type Hub struct {
	topics map[string]map[*Client]bool

	broadcast  chan topicMessage
	register   chan subscription
	unregister chan *Client
}

func NewHub() *Hub {
	return &Hub{
		topics:     make(map[string]map[*Client]bool),
		broadcast:  make(chan topicMessage),
		register:   make(chan subscription),
		unregister: make(chan *Client),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case sub := <-h.register:
			sub.client.topic = sub.topic
			set := h.topics[sub.topic]
			if set == nil {
				set = make(map[*Client]bool)
				h.topics[sub.topic] = set
			}
			set[sub.client] = true

		case client := <-h.unregister:
			h.drop(client)

		case msg := <-h.broadcast:
			for client := range h.topics[msg.topic] {
				select {
				case client.send <- msg.data:
				default:
					// Slow client; push is best-effort, it can re-fetch.
					h.drop(client)
				}
			}
		}
	}
}

// drop removes a client from its topic set and releases the topic entry once
// the last subscriber is gone.
func (h *Hub) drop(client *Client) {
	set, ok := h.topics[client.topic]
	if !ok {
		return
	}
	if _, ok := set[client]; !ok {
		return
	}
	delete(set, client)
	if len(set) == 0 {
		delete(h.topics, client.topic)
	}
	close(client.send)
	_ = client.conn.Close()
}

// Publish hands a payload to the topic's subscribers.
func (h *Hub) Publish(topic string, data []byte) {
	h.broadcast <- topicMessage{topic: topic, data: data}
}
