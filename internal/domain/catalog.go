package domain

type (
	ChannelID string
	TopicID   string
)

// Channel is a top-level community scoping the queues.
type Channel struct {
	ID              ChannelID `json:"id" mapstructure:"id"`
	Name            string    `json:"name" mapstructure:"name"`
	Description     string    `json:"description" mapstructure:"description"`
	Icon            string    `json:"icon" mapstructure:"icon"`
	AccentColor     string    `json:"accentColor" mapstructure:"accent_color"`
	BackgroundImage string    `json:"backgroundImage,omitempty" mapstructure:"background_image"`
}

// Topic is an interest tag narrowing matching inside a channel and mode.
type Topic struct {
	ID          TopicID `json:"id" mapstructure:"id"`
	Name        string  `json:"name" mapstructure:"name"`
	Icon        string  `json:"icon" mapstructure:"icon"`
	Description string  `json:"description" mapstructure:"description"`
}

// Catalog is the static alphabet of channels and topics read at startup.
// It is immutable after NewCatalog and safe for concurrent use.
type Catalog struct {
	channels       []Channel
	topics         []Topic
	channelSet     map[ChannelID]struct{}
	topicSet       map[TopicID]struct{}
	defaultChannel ChannelID
	defaultTopic   TopicID
}

func NewCatalog(channels []Channel, topics []Topic, defaultChannel ChannelID, defaultTopic TopicID) *Catalog {
	c := &Catalog{
		channels:       append([]Channel(nil), channels...),
		topics:         append([]Topic(nil), topics...),
		channelSet:     make(map[ChannelID]struct{}, len(channels)+1),
		topicSet:       make(map[TopicID]struct{}, len(topics)+1),
		defaultChannel: defaultChannel,
		defaultTopic:   defaultTopic,
	}
	for _, ch := range channels {
		c.channelSet[ch.ID] = struct{}{}
	}
	for _, t := range topics {
		c.topicSet[t.ID] = struct{}{}
	}
	// defaults are always matchable even if the lists omit them
	c.channelSet[defaultChannel] = struct{}{}
	c.topicSet[defaultTopic] = struct{}{}
	return c
}

func (c *Catalog) Channels() []Channel { return append([]Channel(nil), c.channels...) }
func (c *Catalog) Topics() []Topic     { return append([]Topic(nil), c.topics...) }

func (c *Catalog) DefaultChannel() ChannelID { return c.defaultChannel }
func (c *Catalog) DefaultTopic() TopicID     { return c.defaultTopic }

func (c *Catalog) HasChannel(id ChannelID) bool {
	_, ok := c.channelSet[id]
	return ok
}

func (c *Catalog) HasTopic(id TopicID) bool {
	_, ok := c.topicSet[id]
	return ok
}

// Normalize maps raw client input onto the catalog. Unknown values fall back to
// defaults; it never rejects. Topic order is preserved and duplicates dropped.
func (c *Catalog) Normalize(channel, mode string, topics []string) (ChannelID, Mode, []TopicID) {
	ch := ChannelID(channel)
	if !c.HasChannel(ch) {
		ch = c.defaultChannel
	}
	m, err := ParseMode(mode)
	if err != nil {
		m = DefaultMode
	}
	seen := make(map[TopicID]struct{}, len(topics))
	out := make([]TopicID, 0, len(topics))
	for _, raw := range topics {
		t := TopicID(raw)
		if !c.HasTopic(t) {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	if len(out) == 0 {
		out = append(out, c.defaultTopic)
	}
	return ch, m, out
}
