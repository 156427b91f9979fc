package models

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// CommandResult содержит результат одной отправки команды в консоль UUT.
// Перезаписывается при каждой очистке буфера.
type CommandResult struct {
	SentCommand   string `json:"sent_command"`
	RawOutput     string `json:"raw_output"`
	PromptMatched bool   `json:"prompt_matched"`
}

// LimitEntry описывает предел для одной метки (шина питания, датчик).
// Загружается один раз из внешней конфигурации и не меняется во время теста.
type LimitEntry struct {
	Nominal    float64            `yaml:"nominal" json:"nominal"`
	Trim       float64            `yaml:"trim" json:"trim"`
	GuardBand  float64            `yaml:"guard_band" json:"guard_band"`
	MarginHigh float64            `yaml:"margin_high" json:"margin_high"`
	MarginLow  float64            `yaml:"margin_low" json:"margin_low"`
	Delta      *float64           `yaml:"delta,omitempty" json:"delta,omitempty"`
	BinTable   map[int]LimitEntry `yaml:"bin_table,omitempty" json:"bin_table,omitempty"`
}

// LimitTable - таблица пределов по метке.
type LimitTable map[string]LimitEntry

// Reading - одно показание, снятое с консоли. Значение приводится к float
// оппортунистически: нечисловые значения ("NA", "NaN", "Inf") сохраняются строкой.
type Reading struct {
	Label   string  `json:"label"`
	Raw     string  `json:"raw"`
	Value   float64 `json:"value"`
	Numeric bool    `json:"numeric"`
}

// NewReading создает показание, пытаясь привести raw к числу.
func NewReading(label, raw string) Reading {
	raw = strings.TrimSpace(raw)
	r := Reading{Label: label, Raw: raw}
	if v, err := strconv.ParseFloat(raw, 64); err == nil && !math.IsNaN(v) && !math.IsInf(v, 0) {
		r.Value = v
		r.Numeric = true
	}
	return r
}

// Float возвращает числовое значение, если оно есть.
func (r Reading) Float() (float64, bool) {
	return r.Value, r.Numeric
}

// ReadingSet - именованный набор показаний (все шины, все датчики).
type ReadingSet map[string]Reading

// MarginResult - результат сравнения одного показания с пределом.
type MarginResult struct {
	Label  string  `json:"label"`
	Level  string  `json:"level,omitempty"`
	Actual float64 `json:"actual"`
	Lower  float64 `json:"lower"`
	Upper  float64 `json:"upper"`
	Pass   bool    `json:"pass"`
	Note   string  `json:"note,omitempty"`
}

// RtcSample - пара (время сервера, время UUT) в секундах эпохи.
type RtcSample struct {
	ServerTime float64 `json:"server_time"`
	UUTTime    float64 `json:"uut_time"`
	Delta      float64 `json:"delta"`
}

// RtcVerdict - итог проверки часов.
type RtcVerdict string

const (
	RtcPass RtcVerdict = "PASS"
	RtcProg RtcVerdict = "PROG"
	RtcFail RtcVerdict = "FAIL"
)

// PortRecord содержит состояние одного порта из таблицы статуса.
type PortRecord struct {
	PortID    int    `json:"port_id"`
	Speed     string `json:"speed"`
	Duplex    string `json:"duplex"`
	Crossover string `json:"crossover"`
	Loopback  string `json:"loopback"`
	LinkState string `json:"link_state"`
}

// PortSet - набор портов по номеру. Обновляется целиком при каждом опросе.
type PortSet map[int]PortRecord

// PortStatus - разобранная таблица портов и ошибки, относящиеся к целевым портам.
type PortStatus struct {
	Records PortSet        `json:"records"`
	Errors  map[int]string `json:"errors,omitempty"`
}

// PoeBudgetPlan - разбиение PoE-портов на группы, безопасные по мощности.
type PoeBudgetPlan struct {
	GroupCount     int     `json:"group_count"`
	PortsPerGroup  [][]int `json:"ports_per_group"`
	PowerNeeded    float64 `json:"power_needed"`
	PowerAvailable float64 `json:"power_available"`
	Dropped        []int   `json:"dropped,omitempty"`
}

// PoEPortStatus - строка вывода Alchemy POEGET.
type PoEPortStatus struct {
	Port       int    `json:"port"`
	Class      int    `json:"class"`
	PowerMilli int    `json:"power_mw"`
	Status     string `json:"status"`
}

// PSURecord - строка таблицы блоков питания.
type PSURecord struct {
	Slot       int     `json:"slot"`
	Model      string  `json:"model"`
	Serial     string  `json:"serial"`
	RatedWatts float64 `json:"rated_watts"`
	Status     string  `json:"status"`
}

// StackPort - порт стекового кольца (вывод StackRAC).
type StackPort struct {
	Port     string `json:"port"`
	Neighbor string `json:"neighbor"`
	State    string `json:"state"`
	Errors   int    `json:"errors"`
}

// ECIDRecord - идентификатор кристалла для одного ядра ASIC.
type ECIDRecord struct {
	ASIC        int    `json:"asic"`
	Core        int    `json:"core"`
	Type        string `json:"type"`
	Version     string `json:"version"`
	DieID       string `json:"die_id"`
	CoreFreqMHz int    `json:"core_freq_mhz,omitempty"`
}

// BatchResult - итог выполнения пакетного сценария диагностики.
type BatchResult struct {
	Script           string     `json:"script"`
	Commands         int        `json:"commands"`
	Failures         []string   `json:"failures,omitempty"`
	EarlyTermination bool       `json:"early_termination"`
	Completed        bool       `json:"completed"`
	Status           StepStatus `json:"status"`
}

// Snapshot - сводка данных об UUT, собранная последовательно.
type Snapshot struct {
	Serial       string      `json:"serial"`
	Timestamp    time.Time   `json:"timestamp"`
	Voltages     ReadingSet  `json:"voltages"`
	Temperatures ReadingSet  `json:"temperatures"`
	PSUs         []PSURecord `json:"psus"`
	Ports        PortSet     `json:"ports"`
	Warnings     []string    `json:"warnings,omitempty"`
}

// StepStatus - словарь результатов шага, принимаемый внешним оркестратором.
type StepStatus string

const (
	StepPass     StepStatus = "PASS"
	StepFail     StepStatus = "FAIL"
	StepSkipped  StepStatus = "SKIPPED"
	StepDisabled StepStatus = "DISABLED"
)

// StepResult - результат одного шага теста.
type StepResult struct {
	Name     string         `json:"name"`
	Status   StepStatus     `json:"status"`
	Message  string         `json:"message,omitempty"`
	Margins  []MarginResult `json:"margins,omitempty"`
	Started  time.Time      `json:"started"`
	Finished time.Time      `json:"finished"`
}

// RunReport - итог прогона профиля на одном UUT.
type RunReport struct {
	RunID    string       `json:"run_id"`
	Serial   string       `json:"serial"`
	Status   StepStatus   `json:"status"`
	Steps    []StepResult `json:"steps"`
	Started  time.Time    `json:"started"`
	Finished time.Time    `json:"finished"`
}
