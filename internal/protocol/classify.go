package protocol

// Packet is the decoded form of one inbound frame. Concrete types:
// *JigInfoResponse, *DownlinkResponse, *UplinkNotification, *DfuResponse,
// *ErrorNotification. Dispatchers switch on the concrete type rather than
// re-reading the raw type byte, because the type byte alone is ambiguous.
type Packet interface {
	packet()
}

func (*JigInfoResponse) packet()    {}
func (*DownlinkResponse) packet()   {}
func (*UplinkNotification) packet() {}
func (*DfuResponse) packet()        {}
func (*ErrorNotification) packet()  {}

// ClassifyAndDecode turns a raw inbound frame into its decoded packet.
//
// Two type codes are genuinely ambiguous on the wire and are resolved by
// length heuristics observed against real hardware. These heuristics are
// firmware behavior, not a design choice; keep them confined to this
// function.
//
//   - 0x02 carries JIG Info responses on current firmware, but some paths
//     reuse it for Downlink responses. Exactly-19-byte frames are tried as
//     Downlink first (a JIG Info response of that length would also parse,
//     silently corrupting fields); everything else is tried as JIG Info
//     first with a Downlink fallback.
//   - 0x01 carries the 20-byte Downlink command response; 19/20-byte frames
//     are tried as Downlink first, anything else as JIG Info first.
//   - 0x03 carries both DFU responses and uplink traffic on some firmware.
//     The DFU response is exactly 7 bytes, so it is tried first and the
//     uplink decode is the fallback.
func ClassifyAndDecode(data []byte) (Packet, error) {
	if len(data) < 2 {
		return nil, &ShortPacketError{Kind: "frame", Got: len(data), Want: 2}
	}
	switch data[1] {
	case TypeUplink:
		return DecodeUplinkNotification(data)
	case TypeDownlinkResponse, TypeJigInfoResponse:
		downlinkFirst := len(data) == 19
		if data[1] == TypeDownlinkResponse {
			downlinkFirst = len(data) == 19 || len(data) == 20
		}
		if downlinkFirst {
			if resp, err := DecodeDownlinkResponse(data); err == nil {
				return resp, nil
			}
			return DecodeJigInfoResponse(data)
		}
		if resp, err := DecodeJigInfoResponse(data); err == nil {
			return resp, nil
		}
		return DecodeDownlinkResponse(data)
	case TypeDfuResponse:
		if resp, err := DecodeDfuResponse(data); err == nil {
			return resp, nil
		}
		return DecodeUplinkNotification(data)
	case TypeErrorLegacy, TypeError:
		return DecodeErrorNotification(data)
	default:
		return nil, &UnknownTypeError{Type: data[1]}
	}
}
