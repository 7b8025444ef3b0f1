// Package demo contains an in-memory chat used by the graphql-server command.
package demo

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wundergraph/graphql-http-ws-server/pkg/graphql"
)

const TypeDefs = `
type Message {
	id: ID!
	text: String!
	author: String!
	createdAt: String!
}

type Query {
	hello: String!
	messages(last: Int): [Message!]!
}

type Mutation {
	postMessage(text: String!, author: String!): Message!
}

type Subscription {
	messagePosted(author: String): Message!
	counter: Int!
}
`

var ErrEmptyText = errors.New("text must not be empty")

type Message struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Author    string `json:"author"`
	CreatedAt string `json:"createdAt"`
}

// Chat stores messages in memory and fans out every posted message to all subscribers.
type Chat struct {
	mu          sync.RWMutex
	messages    []Message
	subscribers map[string]chan Message

	counterInterval time.Duration
	now             func() time.Time
}

func NewChat() *Chat {
	return &Chat{
		subscribers:     make(map[string]chan Message),
		counterInterval: time.Second,
		now:             time.Now,
	}
}

func (c *Chat) Resolvers() *graphql.Resolvers {
	return &graphql.Resolvers{
		Query: map[string]graphql.FieldResolveFunc{
			"hello": func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
				return "world", nil
			},
			"messages": func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
				return c.Messages(intArgument(args, "last")), nil
			},
		},
		Mutation: map[string]graphql.FieldResolveFunc{
			"postMessage": func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
				text, _ := args["text"].(string)
				author, _ := args["author"].(string)
				return c.Post(text, author)
			},
		},
		Subscription: map[string]graphql.SubscriptionResolveFunc{
			"messagePosted": func(ctx context.Context, args map[string]interface{}) (<-chan interface{}, error) {
				author, _ := args["author"].(string)
				return c.subscribe(ctx, author), nil
			},
			"counter": func(ctx context.Context, args map[string]interface{}) (<-chan interface{}, error) {
				return c.count(ctx), nil
			},
		},
	}
}

// Messages returns the last n messages, all of them if n isn't positive.
func (c *Chat) Messages(n int) []Message {
	c.mu.RLock()
	defer c.mu.RUnlock()

	start := 0
	if n > 0 && n < len(c.messages) {
		start = len(c.messages) - n
	}
	return append([]Message{}, c.messages[start:]...)
}

func (c *Chat) Post(text, author string) (Message, error) {
	if text == "" {
		return Message{}, ErrEmptyText
	}

	message := Message{
		ID:        uuid.NewString(),
		Text:      text,
		Author:    author,
		CreatedAt: c.now().UTC().Format(time.RFC3339),
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, message)
	for _, subscriber := range c.subscribers {
		// slow subscribers miss messages instead of blocking the chat
		select {
		case subscriber <- message:
		default:
		}
	}
	return message, nil
}

func (c *Chat) subscribe(ctx context.Context, author string) <-chan interface{} {
	id := uuid.NewString()
	messages := make(chan Message, 16)

	c.mu.Lock()
	c.subscribers[id] = messages
	c.mu.Unlock()

	out := make(chan interface{})
	go func() {
		defer func() {
			c.mu.Lock()
			delete(c.subscribers, id)
			c.mu.Unlock()
			close(out)
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case message := <-messages:
				if author != "" && message.Author != author {
					continue
				}
				select {
				case out <- message:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

func (c *Chat) count(ctx context.Context) <-chan interface{} {
	out := make(chan interface{})
	go func() {
		defer close(out)
		ticker := time.NewTicker(c.counterInterval)
		defer ticker.Stop()

		for i := 1; ; i++ {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			select {
			case out <- i:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// intArgument reads an Int argument. Literals arrive as int64, variables as decoded JSON numbers.
func intArgument(args map[string]interface{}, name string) int {
	switch value := args[name].(type) {
	case int64:
		return int(value)
	case int:
		return value
	case float64:
		return int(value)
	case json.Number:
		n, _ := value.Int64()
		return int(n)
	default:
		return 0
	}
}

func (c *Chat) subscriberCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subscribers)
}
