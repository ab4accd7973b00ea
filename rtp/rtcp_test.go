package rtp

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eluv-io/bitstream"
	"github.com/eluv-io/bitstream/output"
)

func buildSR(t *testing.T, reports int) []byte {
	buf := make([]byte, srReportOffset+reports*ReportBlockLen)
	c, err := InitCtrl(buf, RtcpSR)
	require.NoError(t, err)
	c.SetCount(uint8(reports))
	c.SetSSRC(0x01020304)
	c.SetNTPTime(0xE0000000, 0x80000000)
	c.SetRTPTime(90000)
	c.SetPacketCount(10)
	c.SetOctetCount(1880)
	for i := 0; i < reports; i++ {
		r := c.Report(i)
		r.SetSSRC(uint32(100 + i))
		r.SetFractionLost(25)
		require.NoError(t, r.SetCumulativeLost(int64(-3*(i+1))))
		r.SetHighestSeq(65540)
		r.SetJitter(12)
		r.SetLastSR(0xE0008000)
		r.SetDelaySinceLastSR(65536)
	}
	return buf
}

func TestSenderReport(t *testing.T) {
	buf := buildSR(t, 2)
	c, err := ValidateCtrl(buf)
	require.NoError(t, err)
	require.Equal(t, uint8(RtcpSR), c.Type())
	require.Equal(t, uint16(len(buf)/4-1), c.Length())
	require.Equal(t, len(buf), c.Size())
	sec, frac := c.NTPTime()
	require.Equal(t, uint32(0xE0000000), sec)
	require.Equal(t, uint32(0x80000000), frac)
	require.Equal(t, uint32(90000), c.RTPTime())
	require.Equal(t, uint32(10), c.PacketCount())
	require.Equal(t, uint32(1880), c.OctetCount())

	r := c.Report(1)
	require.Equal(t, uint32(101), r.SSRC())
	require.Equal(t, uint8(25), r.FractionLost())
	require.Equal(t, int64(-6), r.CumulativeLost())
	require.Equal(t, uint32(65540), r.HighestSeq())
	require.Equal(t, uint32(65536), r.DelaySinceLastSR())
	require.Nil(t, c.Report(2))

	// cumulative lost is sign-magnitude: sign bit then 23 bits of 6
	off := srReportOffset + ReportBlockLen + 5
	require.Equal(t, []byte{0x80, 0x00, 0x06}, buf[off:off+3])
}

func TestReceiverReportLimits(t *testing.T) {
	buf := make([]byte, rrReportOffset+ReportBlockLen)
	c, err := InitCtrl(buf, RtcpRR)
	require.NoError(t, err)
	c.SetCount(1)
	r := c.Report(0)
	require.NoError(t, r.SetCumulativeLost(0x7FFFFF))
	require.Equal(t, int64(0x7FFFFF), r.CumulativeLost())
	require.ErrorIs(t, r.SetCumulativeLost(0x800000), bitstream.ErrInvalidValue)

	c.SetCount(2)
	_, err = ValidateCtrl(buf)
	require.ErrorIs(t, err, bitstream.ErrTooShort)
}

func TestValidateCtrlErrors(t *testing.T) {
	_, err := ValidateCtrl([]byte{0x80, 201})
	require.ErrorIs(t, err, bitstream.ErrTooShort)

	_, err = ValidateCtrl([]byte{0x40, 201, 0, 1, 0, 0, 0, 0})
	require.ErrorIs(t, err, bitstream.ErrInvalidValue)

	_, err = ValidateCtrl([]byte{0x80, 201, 0, 5, 0, 0, 0, 0})
	require.ErrorIs(t, err, bitstream.ErrLengthMismatch)

	_, err = InitCtrl(make([]byte, 10), RtcpRR)
	require.ErrorIs(t, err, bitstream.ErrInvalidValue)
}

func TestWalkCompound(t *testing.T) {
	sr := buildSR(t, 1)
	bye := []byte{0x81, RtcpBYE, 0, 1, 0, 0, 0, 9}
	compound := append(append([]byte{}, sr...), bye...)

	pkts, err := WalkCompound(compound)
	require.NoError(t, err)
	require.Len(t, pkts, 2)
	require.Equal(t, "SR", CtrlTypeName(pkts[0].Type()))
	require.Equal(t, "BYE", CtrlTypeName(pkts[1].Type()))
	require.Equal(t, uint32(9), pkts[1].SSRC())

	pkts, err = WalkCompound(append(compound, 0x80))
	require.ErrorIs(t, err, bitstream.ErrTooShort)
	require.Len(t, pkts, 2)
}

func TestPrintCtrl(t *testing.T) {
	c, err := ValidateCtrl(buildSR(t, 1))
	require.NoError(t, err)

	var frags []string
	PrintCtrl(c, output.New(output.XML, func(s string) { frags = append(frags, s) }))
	require.Len(t, frags, 3)
	require.Equal(t, `<RTCP type="SR" count="1" length="12" ssrc="0x01020304" ntp="0xe000000080000000" rtp_time="90000" packets="10" octets="1880">`, frags[0])
	require.Contains(t, frags[1], `cumulative_lost="-3"`)
	require.Equal(t, "</RTCP>", frags[2])
}
