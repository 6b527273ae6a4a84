package extd

import (
	"fmt"
	"os"
	"time"

	"github.com/sony/sonyflake"
	"github.com/yusufsyaifudin/kirimsurat/config"
	"github.com/yusufsyaifudin/kirimsurat/internal/dispatch"
	"github.com/yusufsyaifudin/kirimsurat/pkg/mailclient"
)

// NewIDGenerator returns the Message-ID source. The machine id comes from the process id
// so it works on hosts without a private address.
func NewIDGenerator() (*sonyflake.Sonyflake, error) {
	sf := sonyflake.NewSonyflake(sonyflake.Settings{
		StartTime: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		MachineID: func() (uint16, error) {
			return uint16(os.Getpid()), nil
		},
	})

	if sf == nil {
		return nil, fmt.Errorf("cannot create sonyflake id generator")
	}

	return sf, nil
}

// NewEngine wires the relay dialer and the id generator into a dispatch engine.
func NewEngine(cfg config.SMTP) (*dispatch.Engine, error) {
	idGen, err := NewIDGenerator()
	if err != nil {
		return nil, err
	}

	return dispatch.New(dispatch.EngineConfig{
		Opener: &mailclient.Dialer{
			OpenTimeout:     cfg.OpenTimeout,
			TransmitTimeout: cfg.TransmitTimeout,
		},
		IDGen: idGen,
	})
}
