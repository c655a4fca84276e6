package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/wardrobe-backend/pkg/config"
	"github.com/angelmondragon/wardrobe-backend/pkg/gcp"
	"github.com/angelmondragon/wardrobe-backend/pkg/logger"
)

var (
	errProjectIDRequired = errors.New("pubsub: gcp project id is required")
	errTopicRequired     = errors.New("pubsub: orders topic is required")
)

// Client wraps a Pub/Sub v2 client. Publishers are created once per topic and
// stopped on Close so buffered messages are flushed.
type Client struct {
	ps         *pubsub.Client
	project    string
	cfg        config.PubSubConfig
	subscriber bool

	mu   sync.Mutex
	pubs map[string]*pubsub.Publisher
}

// NewClient dials Pub/Sub. A subscriber client requires the orders
// subscription to exist; a publisher client requires the orders topic.
func NewClient(ctx context.Context, gcpCfg config.GCPConfig, cfg config.PubSubConfig, subscriber bool, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcpCfg.ProjectID)
	if project == "" {
		return nil, errProjectIDRequired
	}
	if strings.TrimSpace(cfg.OrdersTopic) == "" {
		return nil, errTopicRequired
	}

	ps, err := pubsub.NewClient(ctx, project, gcp.ClientOptions(gcpCfg)...)
	if err != nil {
		return nil, fmt.Errorf("pubsub: new client: %w", err)
	}
	c := &Client{ps: ps, project: project, cfg: cfg, subscriber: subscriber, pubs: map[string]*pubsub.Publisher{}}
	if err := c.Ping(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{"project": project, "subscriber": subscriber}), "pubsub client ready")
	}
	return c, nil
}

// Ping confirms the resource this client depends on still exists.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.ps == nil {
		return errors.New("pubsub: client not initialized")
	}
	if c.subscriber {
		name := c.resource("subscriptions", c.cfg.OrdersSubscription)
		if name == "" {
			return errors.New("pubsub: orders subscription not configured")
		}
		_, err := c.ps.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: name})
		return describe("subscription", c.cfg.OrdersSubscription, err)
	}
	_, err := c.ps.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: c.resource("topics", c.cfg.OrdersTopic)})
	return describe("topic", c.cfg.OrdersTopic, err)
}

func describe(kind, name string, err error) error {
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("pubsub: %s %q does not exist", kind, name)
	default:
		return fmt.Errorf("pubsub: look up %s %q: %w", kind, name, err)
	}
}

// Subscription returns a subscriber for an id or full resource name.
func (c *Client) Subscription(name string) *pubsub.Subscriber {
	if c == nil || c.ps == nil {
		return nil
	}
	full := c.resource("subscriptions", name)
	if full == "" {
		return nil
	}
	return c.ps.Subscriber(full)
}

func (c *Client) OrdersSubscription() *pubsub.Subscriber {
	if c == nil {
		return nil
	}
	return c.Subscription(c.cfg.OrdersSubscription)
}

// Publisher returns the shared publisher for a topic id or resource name.
func (c *Client) Publisher(name string) *pubsub.Publisher {
	if c == nil || c.ps == nil {
		return nil
	}
	full := c.resource("topics", name)
	if full == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.pubs[full]; ok {
		return p
	}
	p := c.ps.Publisher(full)
	c.pubs[full] = p
	return p
}

func (c *Client) Close() error {
	if c == nil || c.ps == nil {
		return nil
	}
	c.mu.Lock()
	for _, p := range c.pubs {
		p.Stop()
	}
	c.pubs = map[string]*pubsub.Publisher{}
	c.mu.Unlock()
	return c.ps.Close()
}

func (c *Client) resource(kind, name string) string {
	return resourceName(c.project, name, kind)
}

// resourceName expands a short id to projects/<p>/<kind>/<id>. Full names of
// the same kind pass through.
func resourceName(projectID, name, kind string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if strings.HasPrefix(name, "projects/") && strings.Contains(name, "/"+kind+"/") {
		return name
	}
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return ""
	}
	return "projects/" + projectID + "/" + kind + "/" + name
}
