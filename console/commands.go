package console

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Команды диагностической оболочки. Каждая строка отправляется как есть,
// с завершающим возвратом каретки.
const (
	CmdGetVoltMarg = "GetVoltMarg\r"
	CmdGetTemp     = "GetTemp\r"
	CmdGetRTC      = "getrtc\r"
	CmdStackRAC    = "StackRAC\r"
	CmdPoEGet      = "Alchemy POEGET\r"
	CmdPortStatus  = "PortStatus\r"
	CmdReadECID    = "AsicEcid\r"
	CmdPsuStatus   = "PsuStatus\r"
)

// SetVoltMarg переводит шину в уровень NOMINAL/HIGH/LOW. instance - номер
// устройства (0 - основная плата, >0 - FRU).
func SetVoltMarg(rail, level string, instance int) string {
	return fmt.Sprintf("SetVoltMarg %s %s -f:%d\r", rail, level, instance)
}

// SysInit инициализирует подсистемы UUT с указанным уровнем.
func SysInit(level int) string {
	return fmt.Sprintf("sysinit %d\r", level)
}

// PoESet включает или выключает питание на группе портов.
func PoESet(ports []int, on bool) string {
	ids := make([]string, 0, len(ports))
	for _, p := range ports {
		ids = append(ids, strconv.Itoa(p))
	}
	state := "OFF"
	if on {
		state = "ON"
	}
	return fmt.Sprintf("Alchemy POESET -p:%s -s:%s\r", strings.Join(ids, ","), state)
}

// SetRTCDate и SetRTCTime программируют часы UUT в UTC.
func SetRTCDate(t time.Time) string {
	return "setrtc -date:" + t.UTC().Format("01/02/2006") + "\r"
}

func SetRTCTime(t time.Time) string {
	return "setrtc -time:" + t.UTC().Format("15:04:05") + "\r"
}

// FpgaDump читает count регистров начиная с addr.
func FpgaDump(addr uint32, count int) string {
	return fmt.Sprintf("FpgaDump 0x%04x %d\r", addr, count)
}

// ListDir выводит содержимое каталога на UUT.
func ListDir(path string) string {
	return fmt.Sprintf("ls %s\r", path)
}

// RunBatch запускает пакетный скрипт.
func RunBatch(script string) string {
	return fmt.Sprintf("batch %s\r", script)
}
