package world

import "github.com/annel0/netsync/internal/protocol"

// LocalController накапливает команды локального игрока для
// предсказания и отправки на сервер. Реализует entity.Controller.
type LocalController struct {
	commands []protocol.Command
	capacity int
}

// NewLocalController создаёт контроллер с ограничением очереди.
func NewLocalController(capacity int) *LocalController {
	if capacity <= 0 {
		capacity = 64
	}
	return &LocalController{capacity: capacity}
}

// AddCommand ставит команду в очередь; при переполнении вытесняется
// старейшая.
func (c *LocalController) AddCommand(cmd protocol.Command) {
	if len(c.commands) >= c.capacity {
		copy(c.commands, c.commands[1:])
		c.commands = c.commands[:len(c.commands)-1]
	}
	c.commands = append(c.commands, cmd)
}

// LatestCommand последняя поставленная команда.
func (c *LocalController) LatestCommand() protocol.Command {
	if len(c.commands) == 0 {
		return nil
	}
	return c.commands[len(c.commands)-1]
}

// PendingCommands неподтверждённые команды по возрастанию тиков.
func (c *LocalController) PendingCommands() []protocol.Command {
	return c.commands
}

// Trim выбрасывает команды с тиком не больше acked: сервер их уже
// учёл, повторять их при перебазировании не нужно.
func (c *LocalController) Trim(acked protocol.Tick) {
	keep := c.commands[:0]
	for _, cmd := range c.commands {
		if cmd.Tick() > acked {
			keep = append(keep, cmd)
		}
	}
	c.commands = keep
}
