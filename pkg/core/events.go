package core

// Event name suffixes accepted on a tracked entity channel. The full
// discriminator is "<entityType>.<suffix>".
const (
	SuffixLocationChanged          = "location_changed"
	SuffixSimulatedLocationChanged = "simulated_location_changed"
)

// AdditionalData carries producer specific extras. Index is set by route
// simulators and orders events that share a timestamp.
type AdditionalData struct {
	Index *int `json:"index,omitempty"`
}

// LocationData is the payload of a location event.
type LocationData struct {
	Location       *Location       `json:"location,omitempty"`
	Heading        any             `json:"heading,omitempty"`
	Speed          any             `json:"speed,omitempty"`
	SpeedUnit      string          `json:"speed_unit,omitempty"`
	AdditionalData *AdditionalData `json:"additionalData,omitempty"`
}

// LocationEvent is a position update pushed on an entity channel.
type LocationEvent struct {
	Event     string       `json:"event"`
	Data      LocationData `json:"data"`
	CreatedAt any          `json:"created_at,omitempty"`
}

// Sample converts the event into a position sample.
func (e LocationEvent) Sample() Sample {
	return Sample{
		Location:  e.Data.Location,
		Heading:   e.Data.Heading,
		Speed:     e.Data.Speed,
		SpeedUnit: e.Data.SpeedUnit,
		CreatedAt: e.CreatedAt,
	}
}

// SequenceIndex returns the simulator index carried by the event, if any.
func (e LocationEvent) SequenceIndex() (int, bool) {
	if e.Data.AdditionalData == nil || e.Data.AdditionalData.Index == nil {
		return 0, false
	}
	return *e.Data.AdditionalData.Index, true
}

// EventName builds the discriminator for an entity type and suffix.
func EventName(entityType, suffix string) string {
	return entityType + "." + suffix
}

// ChannelName builds the pub/sub channel name of one entity.
func ChannelName(entityType, entityID string) string {
	return entityType + "." + entityID
}
