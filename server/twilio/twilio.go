package twilio

import (
	"github.com/pkg/errors"
	"github.com/safeher/safeher/shared"
	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// ClientWrapper is the notification gateway - one text message to one
// phone number per call, no batching.
type ClientWrapper struct {
	client *twilio.RestClient
	config shared.TwilioConfig
}

func NewClient(config shared.TwilioConfig) *ClientWrapper {
	client := twilio.NewRestClientWithParams(twilio.RestClientParams{
		Username: config.AccountSid,
		Password: config.AuthToken,
	})

	return &ClientWrapper{
		client: client,
		config: config,
	}
}

// SendMessage delivers a single text message. Provider-level errors
// are returned to the caller as plain errors, so sibling sends are
// never aborted by one failed recipient.
func (cw *ClientWrapper) SendMessage(to, msg string) error {
	params := &openapi.CreateMessageParams{}
	params.SetMessagingServiceSid(cw.config.MessagingServiceSid)
	params.SetTo(to)
	params.SetBody(msg)

	resp, err := cw.client.ApiV2010.CreateMessage(params)
	if err != nil {
		return errors.Wrapf(err, "send to %v", to)
	}

	if resp.ErrorMessage != nil && *resp.ErrorMessage != "" {
		return errors.Errorf("send to %v: %v", to, *resp.ErrorMessage)
	}

	return nil
}
