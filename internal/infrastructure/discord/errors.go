package discord

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/ZIKOpl/ZIKO-SHOP/internal/domain/chat"
	"github.com/bwmarrin/discordgo"
)

// mapError translates discordgo failures into the chat package's sentinels so
// the application can tell "gone" from "try again".
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var rest *discordgo.RESTError
	if errors.As(err, &rest) {
		if rest.Message != nil {
			switch rest.Message.Code {
			case discordgo.ErrCodeUnknownMessage:
				return fmt.Errorf("%w: %w", chat.ErrMessageNotFound, err)
			case discordgo.ErrCodeUnknownChannel:
				return fmt.Errorf("%w: %w", chat.ErrChannelNotFound, err)
			case discordgo.ErrCodeUnknownMember, discordgo.ErrCodeUnknownUser:
				return fmt.Errorf("%w: %w", chat.ErrMemberNotFound, err)
			}
		}
		if rest.Response != nil {
			if code := rest.Response.StatusCode; code == http.StatusTooManyRequests || code >= http.StatusInternalServerError {
				return fmt.Errorf("%w: %w", chat.ErrTransient, err)
			}
		}
		return err
	}

	var limited *discordgo.RateLimitError
	var netErr net.Error
	switch {
	case errors.As(err, &limited),
		errors.As(err, &netErr),
		errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", chat.ErrTransient, err)
	}
	return err
}
