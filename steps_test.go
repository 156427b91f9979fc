package diag

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/iwtcode/diagAdapter/batch"
	"github.com/iwtcode/diagAdapter/console"
	"github.com/iwtcode/diagAdapter/margin"
	"github.com/iwtcode/diagAdapter/models"
	"github.com/iwtcode/diagAdapter/rtc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const voltTable = `| Rail     | Nominal | Actual | Scope      |
|----------|---------|--------|------------|
| VDD_CORE | 0.900   | 0.903  | BOARD      |
| VDD_1V8  | 1.800   | 1.797  | Main Board |
| VDD_3V3  | 3.300   | NA     | BOARD      |
| FRU_12V  | 12.000  | 11.9   | FRU 1      |`

var voltLimits = models.LimitTable{
	"VDD_CORE": {Nominal: 0.9, GuardBand: 0.03, MarginHigh: 0.05, MarginLow: 0.05},
	"VDD_1V8":  {Nominal: 1.8, GuardBand: 0.03, MarginHigh: 0.05, MarginLow: 0.05},
	"VDD_3V3":  {Nominal: 3.3, GuardBand: 0.03},
}

func TestVoltageStepNominal(t *testing.T) {
	sim := console.NewSimTransport("").Handle("GetVoltMarg", voltTable)
	c := newSimClient(t, sim)

	r := c.VoltageStep(context.Background(), VoltageTestConfig{Limits: voltLimits})
	assert.Equal(t, models.StepPass, r.Status, r.Message)
	assert.Len(t, r.Margins, 3)
	assert.Equal(t, []string{"GetVoltMarg"}, sim.Commands(), "на уровне NOMINAL шины не переключаются")
}

func TestVoltageStepHighRestoresNominal(t *testing.T) {
	sim := console.NewSimTransport("").
		Handle("GetVoltMarg", voltTable).
		HandleRegexp(`^SetVoltMarg `, "")
	c := newSimClient(t, sim)

	r := c.VoltageStep(context.Background(), VoltageTestConfig{
		Levels: []margin.Level{margin.High},
		Rails:  []string{"VDD_CORE"},
		Limits: voltLimits,
	})
	// таблица не меняется, поэтому на HIGH показания ниже окна
	assert.Equal(t, models.StepFail, r.Status)
	assert.Equal(t, []string{
		"SetVoltMarg VDD_CORE HIGH -f:0",
		"GetVoltMarg",
		"SetVoltMarg VDD_CORE NOMINAL -f:0",
	}, sim.Commands())
}

// marginSim - UUT, у которого показания шин следуют за SetVoltMarg.
func marginSim() *console.SimTransport {
	nominal := map[string]float64{"VDD_CORE": 0.9, "VDD_1V8": 1.8}
	shift := map[string]float64{"NOMINAL": 0, "HIGH": 0.05, "LOW": -0.05}

	var mu sync.Mutex
	state := map[string]string{}

	return console.NewSimTransport("").
		HandleFunc(`^SetVoltMarg `, func(cmd string) string {
			f := strings.Fields(cmd)
			mu.Lock()
			state[f[1]] = f[2]
			mu.Unlock()
			return ""
		}).
		HandleFunc(`^GetVoltMarg$`, func(string) string {
			mu.Lock()
			defer mu.Unlock()
			var b strings.Builder
			b.WriteString("| Rail     | Nominal | Actual | Scope |\n")
			for _, rail := range []string{"VDD_CORE", "VDD_1V8"} {
				level := state[rail]
				if level == "" {
					level = "NOMINAL"
				}
				actual := nominal[rail] * (1 + shift[level])
				fmt.Fprintf(&b, "| %s | %.3f | %.3f | BOARD |\n", rail, nominal[rail], actual)
			}
			return b.String()
		})
}

var marginLimits = models.LimitTable{
	"VDD_CORE": {Nominal: 0.9, GuardBand: 0.03, MarginHigh: 0.05, MarginLow: 0.05},
	"VDD_1V8":  {Nominal: 1.8, GuardBand: 0.03, MarginHigh: 0.05, MarginLow: 0.05},
}

func TestVoltageStepNominalAfterMarginRestoresRails(t *testing.T) {
	sim := marginSim()
	c := newSimClient(t, sim)

	r := c.VoltageStep(context.Background(), VoltageTestConfig{
		Levels: []margin.Level{margin.High, margin.Nominal, margin.Low},
		Limits: marginLimits,
	})
	require.Equal(t, models.StepPass, r.Status, r.Message)
	require.Len(t, r.Margins, 6)

	levels := make([]string, 0, len(r.Margins))
	for _, m := range r.Margins {
		levels = append(levels, m.Level)
	}
	assert.Equal(t, []string{"HIGH", "HIGH", "NOMINAL", "NOMINAL", "LOW", "LOW"}, levels)

	assert.Equal(t, []string{
		"SetVoltMarg VDD_1V8 HIGH -f:0",
		"SetVoltMarg VDD_CORE HIGH -f:0",
		"GetVoltMarg",
		"SetVoltMarg VDD_1V8 NOMINAL -f:0",
		"SetVoltMarg VDD_CORE NOMINAL -f:0",
		"GetVoltMarg",
		"SetVoltMarg VDD_1V8 LOW -f:0",
		"SetVoltMarg VDD_CORE LOW -f:0",
		"GetVoltMarg",
		"SetVoltMarg VDD_1V8 NOMINAL -f:0",
		"SetVoltMarg VDD_CORE NOMINAL -f:0",
	}, sim.Commands())
}

func TestVoltageStepChecksOnlyMarginedRails(t *testing.T) {
	sim := marginSim()
	c := newSimClient(t, sim)

	r := c.VoltageStep(context.Background(), VoltageTestConfig{
		Levels: []margin.Level{margin.High},
		Rails:  []string{"VDD_CORE"},
		Limits: marginLimits,
	})
	require.Equal(t, models.StepPass, r.Status, r.Message)
	require.Len(t, r.Margins, 1, "шина без маржинирования не сравнивается с окном HIGH")
	assert.Equal(t, "VDD_CORE", r.Margins[0].Label)
	assert.Equal(t, "HIGH", r.Margins[0].Level)
}

func TestVoltageStepSkippedWithoutRails(t *testing.T) {
	c := newSimClient(t, console.NewSimTransport(""))

	r := c.VoltageStep(context.Background(), VoltageTestConfig{Instance: 3, Limits: voltLimits})
	assert.Equal(t, models.StepSkipped, r.Status)
}

func TestTemperatureStep(t *testing.T) {
	delta := 15.0
	sim := console.NewSimTransport("").Handle("GetTemp", "Inlet Temperature: 31 C\nExhaust Temperature: 40 C\nASIC0 Die Thermal: 70 C")
	c := newSimClient(t, sim)

	cfg := margin.TemperatureTestConfig{
		Corner:           margin.Nominal,
		OperationalState: "traffic",
		Limits: models.LimitTable{
			"Inlet":     {Nominal: 30, GuardBand: 0.1},
			"ASIC0 Die": {Delta: &delta},
		},
	}
	r := c.TemperatureStep(context.Background(), cfg)
	assert.Equal(t, models.StepFail, r.Status)
	require.Len(t, r.Margins, 2)
	assert.False(t, r.Margins[0].Pass, "ASIC0 Die: |70-40| >= 15")

	delta = 35
	r = c.TemperatureStep(context.Background(), cfg)
	assert.Equal(t, models.StepPass, r.Status)
}

func TestTemperatureStepSkipped(t *testing.T) {
	c := newSimClient(t, console.NewSimTransport(""))
	r := c.TemperatureStep(context.Background(), margin.TemperatureTestConfig{})
	assert.Equal(t, models.StepSkipped, r.Status)
}

func TestEvaluateLinks(t *testing.T) {
	up := models.PortRecord{LinkState: "UP"}
	down := models.PortRecord{LinkState: "DOWN"}

	allDown := models.PortStatus{Records: models.PortSet{1: down, 2: down}}
	mixed := models.PortStatus{Records: models.PortSet{1: up, 2: down}}
	allUp := models.PortStatus{Records: models.PortSet{1: up, 2: up}}

	cases := []struct {
		name   string
		status models.PortStatus
		cfg    PortTestConfig
		want   models.StepStatus
	}{
		{"all down without loopbacks", allDown, PortTestConfig{}, models.StepSkipped},
		{"all down with loopbacks", allDown, PortTestConfig{LoopbacksRequired: true}, models.StepFail},
		{"mixed with loopbacks", mixed, PortTestConfig{LoopbacksRequired: true}, models.StepFail},
		{"mixed without loopbacks", mixed, PortTestConfig{}, models.StepPass},
		{"all up", allUp, PortTestConfig{LoopbacksRequired: true}, models.StepPass},
		{"missing target counts as down", allUp, PortTestConfig{Targets: []int{1, 2, 3}, LoopbacksRequired: true}, models.StepFail},
		{"empty", models.PortStatus{Records: models.PortSet{}}, PortTestConfig{}, models.StepSkipped},
		{"target error", models.PortStatus{Records: models.PortSet{1: up}, Errors: map[int]string{2: "***ERR Port/2"}}, PortTestConfig{}, models.StepFail},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, _ := EvaluateLinks(tc.status, tc.cfg)
			assert.Equal(t, tc.want, got)
		})
	}

	assert.Equal(t, 1.0, DownRatio(allDown, nil))
	assert.Equal(t, 0.5, DownRatio(mixed, []int{1, 2}))
}

func TestPortLinkStep(t *testing.T) {
	sim := console.NewSimTransport("").Handle("PortStatus", " 1:  1000  FULL     N/A     DISABLED   DOWN\n 2:  1000  FULL     N/A     DISABLED   DOWN")
	c := newSimClient(t, sim)

	r := c.PortLinkStep(context.Background(), PortTestConfig{Targets: []int{1, 2}})
	assert.Equal(t, models.StepSkipped, r.Status)
}

type memECIDs struct {
	serial  string
	records []models.ECIDRecord
}

func (m *memECIDs) SaveECIDs(_ context.Context, serial string, records []models.ECIDRecord) error {
	m.serial = serial
	m.records = records
	return nil
}

const ecidDump = `ASIC 0 Core 0:
  Type = 0x12
  Version = 2
  Die ID = 0xaa01
ASIC 0 Core 1:
  Type = 0x12
  Version = 2
  Die ID = 0xaa01
ASIC 1 Core 0:
  Type = 0x12
  Version = 2
  Die ID = 0xbb02`

func TestECIDStep(t *testing.T) {
	repo := &memECIDs{}
	c := newSimClient(t, console.NewSimTransport("").Handle("AsicEcid", ecidDump), WithECIDRepository(repo))

	r := c.ECIDStep(context.Background(), 2)
	assert.Equal(t, models.StepPass, r.Status, r.Message)
	assert.Equal(t, "FOC2231X0QZ", repo.serial)
	assert.Len(t, repo.records, 2)

	r = c.ECIDStep(context.Background(), 4)
	assert.Equal(t, models.StepFail, r.Status)
	assert.Contains(t, r.Message, "alignment mismatch")
}

func TestECIDStepWithoutSerialNotPersisted(t *testing.T) {
	repo := &memECIDs{}
	cfg := testConfig()
	cfg.Serial = ""
	c, err := New(cfg, WithTransport(console.NewSimTransport("").Handle("AsicEcid", ecidDump)), WithECIDRepository(repo))
	require.NoError(t, err)
	defer c.Close()

	r := c.ECIDStep(context.Background(), 2)
	assert.Equal(t, models.StepPass, r.Status, r.Message)
	assert.Nil(t, repo.records, "без серийного номера записи не сохраняются")
}

func TestECIDStepSkipped(t *testing.T) {
	c := newSimClient(t, console.NewSimTransport("").Handle("AsicEcid", "no ASIC present"))
	assert.Equal(t, models.StepSkipped, c.ECIDStep(context.Background(), 1).Status)
}

const psuTable = `PSU  Model          Serial        Rated(W)  Status
1    PWR-C1-1100WAC LIT2123ABCD   1100      OK
2    PWR-C1-1100WAC LIT2123ABCE   1100      OK`

func poeTable(ports []int, low int) string {
	var b strings.Builder
	b.WriteString("Port  Class  Power(mW)  Status\n")
	for _, p := range ports {
		power := 25500
		if p == low {
			power = 900
		}
		fmt.Fprintf(&b, "%d     4      %d      ON\n", p, power)
	}
	return b.String()
}

func TestPoEStep(t *testing.T) {
	ports := []int{1, 2, 3, 4, 5, 6, 7, 8}
	sim := console.NewSimTransport("").
		Handle("PsuStatus", psuTable).
		HandleRegexp(`^Alchemy POESET `, "").
		Handle("Alchemy POEGET", poeTable(ports, 0))
	c := newSimClient(t, sim)

	r := c.PoEStep(context.Background(), PoETestConfig{Ports: ports, Type: "POE+", MinPowerMilli: 20000})
	assert.Equal(t, models.StepPass, r.Status, r.Message)

	cmds := sim.Commands()
	assert.Equal(t, "PsuStatus", cmds[0])
	assert.Equal(t, "Alchemy POESET -p:1,2 -s:ON", cmds[1])
	assert.Equal(t, "Alchemy POEGET", cmds[2])
	assert.Equal(t, "Alchemy POESET -p:1,2 -s:OFF", cmds[3])
	assert.Len(t, cmds, 1+4*3)
}

func TestPoEStepLowPower(t *testing.T) {
	ports := []int{1, 2, 3, 4}
	sim := console.NewSimTransport("").
		Handle("PsuStatus", psuTable).
		HandleRegexp(`^Alchemy POESET `, "").
		Handle("Alchemy POEGET", poeTable(ports, 3))
	c := newSimClient(t, sim)

	r := c.PoEStep(context.Background(), PoETestConfig{Ports: ports, Type: "POE+", MinPowerMilli: 20000})
	assert.Equal(t, models.StepFail, r.Status)
	assert.Contains(t, r.Message, "port 3 delivers 900 mW")
}

func TestPoEStepUnknownType(t *testing.T) {
	sim := console.NewSimTransport("").Handle("PsuStatus", psuTable)
	c := newSimClient(t, sim)

	r := c.PoEStep(context.Background(), PoETestConfig{Ports: []int{1}, Type: "POE++"})
	assert.Equal(t, models.StepFail, r.Status)
}

type memRefs struct {
	mu   sync.Mutex
	refs map[string]time.Time
}

func (m *memRefs) LoadReference(_ context.Context, serial string) (*time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.refs[serial]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (m *memRefs) SaveReference(_ context.Context, serial string, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refs[serial] = t
	return nil
}

// rtcShell имитирует часы UUT со сдвигом, который сбрасывается setrtc.
func rtcShell(offset time.Duration) *console.SimTransport {
	var mu sync.Mutex
	return console.NewSimTransport("").
		HandleFunc(`^getrtc$`, func(string) string {
			mu.Lock()
			defer mu.Unlock()
			return "Current RTC time: " + time.Now().UTC().Add(-offset).Format("01/02/2006 15:04:05")
		}).
		HandleFunc(`^setrtc -time:`, func(string) string {
			mu.Lock()
			defer mu.Unlock()
			offset = 0
			return ""
		}).
		HandleRegexp(`^setrtc -date:`, "")
}

func TestRTCStepPass(t *testing.T) {
	c := newSimClient(t, rtcShell(0))

	r := c.RTCStep(context.Background(), rtc.DefaultConfig())
	assert.Equal(t, models.StepPass, r.Status, r.Message)
}

func TestRTCStepProgramsClock(t *testing.T) {
	refs := &memRefs{refs: map[string]time.Time{}}
	sim := rtcShell(45 * time.Second)
	c := newSimClient(t, sim, WithReferenceStore(refs))

	r := c.RTCStep(context.Background(), rtc.DefaultConfig())
	assert.Equal(t, models.StepPass, r.Status, r.Message)
	assert.Contains(t, r.Message, "RTC programmed")
	assert.Contains(t, refs.refs, "FOC2231X0QZ")

	var sets int
	for _, cmd := range sim.Commands() {
		if strings.HasPrefix(cmd, "setrtc ") {
			sets++
		}
	}
	assert.Equal(t, 2, sets, "дата и время")
}

func TestRTCStepWithoutSerialSkipsReference(t *testing.T) {
	refs := &memRefs{refs: map[string]time.Time{"": time.Now().Add(-1000 * time.Hour)}}
	cfg := testConfig()
	cfg.Serial = ""
	c, err := New(cfg, WithTransport(rtcShell(45*time.Second)), WithReferenceStore(refs))
	require.NoError(t, err)
	defer c.Close()

	r := c.RTCStep(context.Background(), rtc.DefaultConfig())
	assert.Equal(t, models.StepPass, r.Status, r.Message)
	assert.Contains(t, r.Message, "RTC programmed")
	assert.Len(t, refs.refs, 1)
	assert.WithinDuration(t, time.Now().Add(-1000*time.Hour), refs.refs[""], time.Minute, "общая запись с пустым ключом не перезаписывается")
}

func TestBatchStep(t *testing.T) {
	sim := console.NewSimTransport("").
		Handle("ls /flash/diag", ".  ..  post_20260101.bat  post_20260915.bat").
		Handle("batch /flash/diag/post_20260915.bat", "BATCH BEGIN\nDiag> MemTest\nMemTest passed\nDiag> PhyLoop\nBATCH END")
	c := newSimClient(t, sim)

	r := c.BatchStep(context.Background(), BatchTestConfig{
		Dir:    "/flash/diag",
		Runner: batch.Config{PollInterval: time.Millisecond, Timeout: time.Second},
	})
	assert.Equal(t, models.StepPass, r.Status, r.Message)
	assert.Contains(t, r.Message, "2 commands")
}

func TestBatchStepNoScripts(t *testing.T) {
	c := newSimClient(t, console.NewSimTransport("").Handle("ls /flash/diag", ".  .."))

	r := c.BatchStep(context.Background(), BatchTestConfig{Dir: "/flash/diag"})
	assert.Equal(t, models.StepSkipped, r.Status)
}

func TestFPGAStep(t *testing.T) {
	sim := console.NewSimTransport("").
		Handle("FpgaDump 0x0000 1", "0x0000: 0x00c0ffee").
		Handle("FpgaDump 0x0010 1", "0x0010: 0x00000003")
	c := newSimClient(t, sim)

	r := c.FPGAStep(context.Background(), []RegisterCheck{
		{Name: "id", Addr: 0x0, Expect: 0xc0ffee},
		{Name: "status", Addr: 0x10, Mask: 0x1, Expect: 0x1},
	})
	assert.Equal(t, models.StepPass, r.Status, r.Message)

	r = c.FPGAStep(context.Background(), []RegisterCheck{{Name: "status", Addr: 0x10, Mask: 0x4, Expect: 0x4}})
	assert.Equal(t, models.StepFail, r.Status)
}

func TestStackStep(t *testing.T) {
	cases := []struct {
		output string
		want   models.StepStatus
	}{
		{"A     sw2/B      UP     0\nB     sw3/A      UP     0", models.StepPass},
		{"A     sw2/B      UP     0\nB     sw3/A      DOWN   4", models.StepFail},
		{"stacking not supported", models.StepSkipped},
	}
	for _, tc := range cases {
		c := newSimClient(t, console.NewSimTransport("").Handle("StackRAC", tc.output))
		assert.Equal(t, tc.want, c.StackStep(context.Background()).Status, tc.output)
	}
}

func TestSnapshotDegradesOptionalSections(t *testing.T) {
	sim := console.NewSimTransport("").
		Handle("GetVoltMarg", voltTable).
		Handle("GetTemp", "Inlet Temperature: 30 C").
		Stall("PsuStatus", "").
		Handle("PortStatus", " 1:  1000  FULL     N/A     DISABLED   UP")
	c := newSimClient(t, sim)

	snap, err := c.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "FOC2231X0QZ", snap.Serial)
	assert.Len(t, snap.Voltages, 4)
	assert.Len(t, snap.Temperatures, 1)
	assert.Len(t, snap.Ports, 1)
	require.Len(t, snap.Warnings, 1)
	assert.Contains(t, snap.Warnings[0], "psus")
}

func TestStartPolling(t *testing.T) {
	sim := console.NewSimTransport("").Handle("GetVoltMarg", voltTable)
	c := newSimClient(t, sim)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	res := <-c.StartPolling(ctx, 10*time.Millisecond)
	require.NoError(t, res.Err)
	assert.Len(t, res.Data.Voltages, 4)
}

func TestDisabledStep(t *testing.T) {
	r := DisabledStep("poe")
	assert.Equal(t, models.StepDisabled, r.Status)
	assert.Equal(t, "poe", r.Name)
}
