// Copyright 2024-2026 Aiku AI
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package relay

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
)

// PostRequest describes a message to publish on the platform on behalf of a
// client session. Username and IconURL impersonate the session owner so the
// post reads as theirs in the channel.
type PostRequest struct {
	ChannelID string
	Text      string
	Username  string
	IconURL   string
	ThreadTS  string
}

// ChannelInfo is the subset of channel metadata the relay surfaces to
// clients.
type ChannelInfo struct {
	ID   string
	Name string
}

// PlatformClient is the relay's view of the upstream chat platform. The
// concrete implementation talks to Slack; handlers and tests depend only on
// this interface.
type PlatformClient interface {
	PostMessage(ctx context.Context, req PostRequest) (RawMessage, error)
	History(ctx context.Context, channelID string, limit int, latest string) ([]RawMessage, error)
	Replies(ctx context.Context, channelID, threadTS string, limit int) ([]RawMessage, error)
	UserProfile(ctx context.Context, userID string) (Profile, error)
	ChannelInfo(ctx context.Context, channelID string) (ChannelInfo, error)
}

var _ PlatformClient = (*SlackClient)(nil)

// SlackClient implements PlatformClient over the Slack Web API plus a Socket
// Mode connection for the live event stream.
type SlackClient struct {
	api *slack.Client
	sm  *socketmode.Client
	log zerolog.Logger

	teamOnce sync.Once
	teamID   string
	teamErr  error

	profileMu    sync.RWMutex
	profileCache map[string]Profile
}

// NewSlackClient creates a client from a bot token (xoxb-) and an app-level
// token (xapp-). The app token carries the connections:write scope Socket
// Mode requires.
func NewSlackClient(botToken, appToken string, log zerolog.Logger) *SlackClient {
	api := slack.New(botToken, slack.OptionAppLevelToken(appToken))
	return &SlackClient{
		api:          api,
		sm:           socketmode.New(api),
		log:          log.With().Str("component", "slack_client").Logger(),
		profileCache: make(map[string]Profile),
	}
}

// Run opens the Socket Mode connection and feeds every channel message event
// to handler until the context is canceled. Events are acked before handling
// so slow downstream work never triggers Slack's redelivery.
func (c *SlackClient) Run(ctx context.Context, handler func(RawMessage)) error {
	go c.consumeEvents(ctx, handler)
	if err := c.sm.RunContext(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("socket mode connection failed: %w", err)
	}
	return nil
}

func (c *SlackClient) consumeEvents(ctx context.Context, handler func(RawMessage)) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-c.sm.Events:
			if !ok {
				return
			}
			switch evt.Type {
			case socketmode.EventTypeConnected:
				c.log.Info().Msg("Socket mode connected")
			case socketmode.EventTypeConnectionError:
				c.log.Warn().Msg("Socket mode connection error, reconnecting")
			case socketmode.EventTypeEventsAPI:
				apiEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
				if !ok {
					continue
				}
				if evt.Request != nil {
					c.sm.Ack(*evt.Request)
				}
				c.handleEventsAPI(apiEvent, handler)
			}
		}
	}
}

func (c *SlackClient) handleEventsAPI(apiEvent slackevents.EventsAPIEvent, handler func(RawMessage)) {
	if apiEvent.Type != slackevents.CallbackEvent {
		return
	}
	ev, ok := apiEvent.InnerEvent.Data.(*slackevents.MessageEvent)
	if !ok {
		return
	}
	handler(RawMessage{
		TS:       ev.TimeStamp,
		Channel:  ev.Channel,
		UserID:   ev.User,
		Username: ev.Username,
		Text:     ev.Text,
		ThreadTS: ev.ThreadTimeStamp,
		SubType:  ev.SubType,
	})
}

// PostMessage implements PlatformClient. Slack's post response carries only
// the assigned timestamp and the final text, so the returned RawMessage is
// assembled from those plus the request's own identity fields.
func (c *SlackClient) PostMessage(ctx context.Context, req PostRequest) (RawMessage, error) {
	opts := []slack.MsgOption{
		slack.MsgOptionText(req.Text, false),
	}
	if req.Username != "" {
		opts = append(opts, slack.MsgOptionUsername(req.Username))
	}
	if req.IconURL != "" {
		opts = append(opts, slack.MsgOptionIconURL(req.IconURL))
	}
	if req.ThreadTS != "" {
		opts = append(opts, slack.MsgOptionTS(req.ThreadTS))
	}

	channel, ts, text, err := c.api.SendMessageContext(ctx, req.ChannelID, opts...)
	if err != nil {
		return RawMessage{}, fmt.Errorf("failed to post message to %s: %w", req.ChannelID, err)
	}
	return RawMessage{
		TS:       ts,
		Channel:  channel,
		Username: req.Username,
		IconURL:  req.IconURL,
		Text:     text,
		ThreadTS: req.ThreadTS,
	}, nil
}

// History implements PlatformClient. Messages arrive newest first, exactly
// as the platform returns them. An empty latest cursor fetches from the
// present.
func (c *SlackClient) History(ctx context.Context, channelID string, limit int, latest string) ([]RawMessage, error) {
	resp, err := c.api.GetConversationHistoryContext(ctx, &slack.GetConversationHistoryParameters{
		ChannelID: channelID,
		Limit:     limit,
		Latest:    latest,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch history for %s: %w", channelID, err)
	}
	raws := make([]RawMessage, 0, len(resp.Messages))
	for _, msg := range resp.Messages {
		raws = append(raws, slackMsgToRaw(channelID, msg.Msg))
	}
	return raws, nil
}

// Replies implements PlatformClient. The platform includes the thread root
// as the first element of the result.
func (c *SlackClient) Replies(ctx context.Context, channelID, threadTS string, limit int) ([]RawMessage, error) {
	msgs, _, _, err := c.api.GetConversationRepliesContext(ctx, &slack.GetConversationRepliesParameters{
		ChannelID: channelID,
		Timestamp: threadTS,
		Limit:     limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch replies for %s/%s: %w", channelID, threadTS, err)
	}
	raws := make([]RawMessage, 0, len(msgs))
	for _, msg := range msgs {
		raws = append(raws, slackMsgToRaw(channelID, msg.Msg))
	}
	return raws, nil
}

// UserProfile implements PlatformClient. Profiles are immutable enough for
// the relay's purposes, so successful lookups are cached for the process
// lifetime.
func (c *SlackClient) UserProfile(ctx context.Context, userID string) (Profile, error) {
	c.profileMu.RLock()
	cached, ok := c.profileCache[userID]
	c.profileMu.RUnlock()
	if ok {
		return cached, nil
	}

	user, err := c.api.GetUserInfoContext(ctx, userID)
	if err != nil {
		return Profile{}, fmt.Errorf("failed to fetch profile for %s: %w", userID, err)
	}
	profile := Profile{
		RealName: user.Profile.RealName,
		Image48:  user.Profile.Image48,
	}
	if profile.RealName == "" {
		profile.RealName = user.RealName
	}

	c.profileMu.Lock()
	c.profileCache[userID] = profile
	c.profileMu.Unlock()
	return profile, nil
}

// ChannelInfo implements PlatformClient.
func (c *SlackClient) ChannelInfo(ctx context.Context, channelID string) (ChannelInfo, error) {
	channel, err := c.api.GetConversationInfoContext(ctx, &slack.GetConversationInfoInput{
		ChannelID: channelID,
	})
	if err != nil {
		return ChannelInfo{}, fmt.Errorf("failed to fetch channel info for %s: %w", channelID, err)
	}
	return ChannelInfo{ID: channel.ID, Name: channel.Name}, nil
}

// TeamID returns the workspace ID of the authenticated bot. The value never
// changes for a given token, so it is resolved once and cached.
func (c *SlackClient) TeamID(ctx context.Context) (string, error) {
	c.teamOnce.Do(func() {
		resp, err := c.api.AuthTestContext(ctx)
		if err != nil {
			c.teamErr = fmt.Errorf("auth test failed: %w", err)
			return
		}
		c.teamID = resp.TeamID
	})
	return c.teamID, c.teamErr
}

func slackMsgToRaw(channelID string, msg slack.Msg) RawMessage {
	raw := RawMessage{
		TS:         msg.Timestamp,
		Channel:    channelID,
		UserID:     msg.User,
		Username:   msg.Username,
		Text:       msg.Text,
		ThreadTS:   msg.ThreadTimestamp,
		ReplyCount: msg.ReplyCount,
		SubType:    msg.SubType,
	}
	for _, f := range msg.Files {
		raw.Files = append(raw.Files, RawFile{
			ID:         f.ID,
			Name:       f.Name,
			URLPrivate: f.URLPrivate,
			Thumb360:   f.Thumb360,
		})
	}
	return raw
}
