// Package poe делит PoE-порты на группы так, чтобы одновременная нагрузка
// группы укладывалась в мощность установленных блоков питания.
package poe

import (
	"fmt"
	"slices"
	"strings"

	"github.com/iwtcode/diagAdapter/models"
	diagerr "github.com/iwtcode/diagAdapter/pkg/errors"
	"github.com/sirupsen/logrus"
)

// DefaultPowerAvailable подставляется, если мощность БП прочитать не удалось.
const DefaultPowerAvailable = 2200.0

// DefaultPortWatts - мощность на порт по типу PoE.
var DefaultPortWatts = map[string]float64{
	"POE":   15.4,
	"POE+":  30,
	"UPOE":  60,
	"UPOE+": 90,
}

// число групп проверяется в этом порядке
var candidateGroups = []int{4, 3, 2, 1}

// PowerAvailable суммирует номинальную мощность исправных БП. Если сумма
// нулевая, возвращается DefaultPowerAvailable с предупреждением.
func PowerAvailable(psus []models.PSURecord, logger *logrus.Entry) float64 {
	total := 0.0
	for _, psu := range psus {
		if strings.EqualFold(psu.Status, "OK") || strings.EqualFold(psu.Status, "GOOD") {
			total += psu.RatedWatts
		}
	}
	if total <= 0 {
		logger.WithField("default_watts", DefaultPowerAvailable).
			Warn("!!! PSU wattage unreadable, using conservative default power budget !!!")
		return DefaultPowerAvailable
	}
	return total
}

type planKey struct {
	power    float64
	portType string
	ports    string
}

// Planner вычисляет план один раз на цикл включения питания и
// пересчитывает его при смене мощности, списка или типа портов.
type Planner struct {
	watts  map[string]float64
	logger *logrus.Entry

	cached *models.PoeBudgetPlan
	key    planKey
}

// NewPlanner создает планировщик. Пустая таблица мощностей заменяется DefaultPortWatts.
func NewPlanner(watts map[string]float64, logger *logrus.Entry) *Planner {
	if len(watts) == 0 {
		watts = DefaultPortWatts
	}
	return &Planner{watts: watts, logger: logger}
}

// Plan выбирает первое число групп из [4, 3, 2, 1], при котором мощность
// группы не превышает доступную. Если не подходит ни одно, берется 1 группа.
func (p *Planner) Plan(ports []int, portType string, powerAvailable float64) (*models.PoeBudgetPlan, error) {
	perPort, ok := p.watts[strings.ToUpper(portType)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", diagerr.ErrUnknownPortType, portType)
	}

	key := planKey{power: powerAvailable, portType: strings.ToUpper(portType), ports: fmt.Sprint(ports)}
	if p.cached != nil && p.key == key {
		return p.cached, nil
	}

	plan := &models.PoeBudgetPlan{PowerAvailable: powerAvailable}
	if len(ports) == 0 {
		p.cached, p.key = plan, key
		return plan, nil
	}

	groups := 0
	for _, g := range candidateGroups {
		if g > len(ports) {
			continue
		}
		needed := float64(len(ports)) / float64(g) * perPort
		if needed <= powerAvailable {
			groups = g
			plan.PowerNeeded = needed
			break
		}
	}
	if groups == 0 {
		groups = 1
		plan.PowerNeeded = float64(len(ports)) * perPort
		p.logger.WithFields(logrus.Fields{
			"ports":           len(ports),
			"power_needed":    plan.PowerNeeded,
			"power_available": powerAvailable,
		}).Warn("no group count fits the power budget, testing all ports in one group")
	}

	plan.GroupCount = groups
	plan.PortsPerGroup, plan.Dropped = Split(ports, groups)
	if len(plan.Dropped) > 0 {
		p.logger.WithField("dropped", plan.Dropped).Warn("ports do not divide evenly into groups, remainder not tested")
	}

	p.logger.WithFields(logrus.Fields{
		"groups":          groups,
		"type":            portType,
		"power_needed":    plan.PowerNeeded,
		"power_available": powerAvailable,
	}).Info("PoE budget planned")

	p.cached, p.key = plan, key
	return plan, nil
}

// Invalidate сбрасывает план (выключение питания UUT).
func (p *Planner) Invalidate() {
	p.cached = nil
}

// Split делит порты на g непрерывных равных частей. Остаток не
// перераспределяется и возвращается отдельно.
func Split(ports []int, g int) ([][]int, []int) {
	if g <= 0 || len(ports) == 0 {
		return nil, nil
	}
	g = min(g, len(ports))
	size := len(ports) / g

	groups := make([][]int, 0, g)
	for i := 0; i < g; i++ {
		groups = append(groups, slices.Clone(ports[i*size:(i+1)*size]))
	}
	var dropped []int
	if rest := ports[g*size:]; len(rest) > 0 {
		dropped = slices.Clone(rest)
	}
	return groups, dropped
}
