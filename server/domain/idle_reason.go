package domain

// IdleReason はセッションがアイドルと判定された理由です。
type IdleReason uint8

const (
	IdleReasonNone IdleReason = iota
	IdleReasonNoRead
	IdleReasonNoPong
	IdleReasonClosed
)

func (r IdleReason) String() string {
	switch r {
	case IdleReasonNoRead:
		return "no read within idle timeout"
	case IdleReasonNoPong:
		return "no pong within idle timeout"
	case IdleReasonClosed:
		return "session closed"
	default:
		return "none"
	}
}
