package diag

import (
	"context"
	"fmt"
	"time"

	"github.com/iwtcode/diagAdapter/console"
	"github.com/iwtcode/diagAdapter/models"
	"github.com/iwtcode/diagAdapter/parser"
	"github.com/iwtcode/diagAdapter/rtc"
)

// consoleClock - часы UUT через команды getrtc/setrtc.
type consoleClock struct {
	c *Client
}

func (k consoleClock) ReadTime(ctx context.Context) (time.Time, error) {
	out, err := k.c.Exec(ctx, console.CmdGetRTC)
	if err != nil {
		return time.Time{}, err
	}
	t, ok := parser.ParseRTC(out)
	if !ok {
		return time.Time{}, fmt.Errorf("unreadable RTC output: %q", out)
	}
	return t, nil
}

func (k consoleClock) SetTime(ctx context.Context, t time.Time) error {
	if _, err := k.c.Exec(ctx, console.SetRTCDate(t)); err != nil {
		return err
	}
	_, err := k.c.Exec(ctx, console.SetRTCTime(t))
	return err
}

// ReadRTC возвращает текущее время часов UUT.
func (c *Client) ReadRTC(ctx context.Context) (time.Time, error) {
	return consoleClock{c}.ReadTime(ctx)
}

// RTCStep проверяет часы UUT и при необходимости перепрограммирует их.
func (c *Client) RTCStep(ctx context.Context, cfg rtc.Config) models.StepResult {
	r := newStep("rtc")

	refs := c.refs
	if refs != nil && c.config.Serial == "" {
		c.logger.Warn("UUT_SERIAL is empty, RTC reference time is neither loaded nor saved")
		refs = nil
	}

	sync := rtc.NewSynchronizer(consoleClock{c}, refs, cfg, c.logger.WithField("component", "rtc"))
	out, err := sync.Run(ctx, c.config.Serial)
	if err != nil {
		return c.failErr(r, err)
	}

	if out.Verdict != models.RtcPass {
		return c.finish(r, models.StepFail, "%s", out.Message)
	}
	if out.Programmed > 0 {
		return c.finish(r, models.StepPass, "RTC programmed (%d attempts), delta %.1fs", out.Programmed, out.Sample.Delta)
	}
	return c.finish(r, models.StepPass, "%s", out.Message)
}
