package storage

import (
	"encoding/json"
	"fmt"

	"github.com/jwebster45206/tabletop-session/pkg/campaign"
	"github.com/jwebster45206/tabletop-session/pkg/chat"
)

func marshalCampaign(c *campaign.Campaign) ([]byte, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal campaign: %w", err)
	}
	return data, nil
}

func unmarshalCampaign(data []byte) (*campaign.Campaign, error) {
	var c campaign.Campaign
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal campaign: %w", err)
	}
	return &c, nil
}

// MarshalTurn encodes a turn record for backends that store JSON blobs.
func MarshalTurn(t chat.TurnRecord) ([]byte, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal turn: %w", err)
	}
	return data, nil
}

// UnmarshalTurn decodes a turn record written by MarshalTurn.
func UnmarshalTurn(data []byte) (chat.TurnRecord, error) {
	var t chat.TurnRecord
	if err := json.Unmarshal(data, &t); err != nil {
		return chat.TurnRecord{}, fmt.Errorf("failed to unmarshal turn: %w", err)
	}
	return t, nil
}
