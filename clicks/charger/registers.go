package charger

import "clickboards/x/mathx"

const (
	// 7-bit I2C address.
	Address = 0x6A

	partNumber = 0b111

	reg00 = 0x00 // EN_HIZ[7] EN_ILIM[6] IINLIM[5:0]
	reg02 = 0x02 // CONV_START[7] CONV_RATE[6] ... AUTO_DPDM_EN[0]
	reg03 = 0x03 // BAT_LOADEN[7] WD_RST[6] OTG_CONFIG[5] CHG_CONFIG[4] SYS_MIN[3:1]
	reg04 = 0x04 // EN_PUMPX[7] ICHG[6:0]
	reg05 = 0x05 // IPRECHG[7:4] ITERM[3:0]
	reg06 = 0x06 // VREG[7:2] BATLOWV[1] VRECHG[0]
	reg07 = 0x07 // EN_TERM[7] STAT_DIS[6] WATCHDOG[5:4] EN_TIMER[3] CHG_TIMER[2:1]
	reg0B = 0x0B // VBUS_STAT[7:5] CHRG_STAT[4:3] PG_STAT[2] SDP_STAT[1] VSYS_STAT[0]
	reg0C = 0x0C // WATCHDOG_FAULT[7] BOOST_FAULT[6] CHRG_FAULT[5:4] BAT_FAULT[3] NTC_FAULT[2:0]
	reg0E = 0x0E // THERM_STAT[7] BATV[6:0]
	reg0F = 0x0F // SYSV[6:0]
	reg10 = 0x10 // TSPCT[6:0]
	reg11 = 0x11 // VBUS_GD[7] VBUSV[6:0]
	reg12 = 0x12 // ICHGR[6:0]
	reg14 = 0x14 // REG_RST[7] ICO_OPTIMIZED[6] PN[5:3] TS_PROFILE[2] DEV_REV[1:0]

	hizBit       = 1 << 7
	convStartBit = 1 << 7
	convRateBit  = 1 << 6
	wdRstBit     = 1 << 6
	chgConfigBit = 1 << 4
	regRstBit    = 1 << 7
	vbusGoodBit  = 1 << 7
	thermBit     = 1 << 7
	enTermBit    = 1 << 7

	iinlimMask  = 0x3F
	ichgMask    = 0x7F
	vregMask    = 0xFC
	sysMinMask  = 0x0E
	watchdogMsk = 0x30
	adcMask     = 0x7F
)

// Setpoint fields: value = Offset + code*Step.
var (
	fieldIINLIM = mathx.Linear{Offset: 100, Step: 50, Max: 0x3F}   // mA
	fieldICHG   = mathx.Linear{Offset: 0, Step: 64, Max: 0x4F}     // mA, 5056 max
	fieldVREG   = mathx.Linear{Offset: 3840, Step: 16, Max: 0x30}  // mV, 4608 max
	fieldSYSMIN = mathx.Linear{Offset: 3000, Step: 100, Max: 0x07} // mV
)

// ADC readback fields.
var (
	fieldBATV  = mathx.Linear{Offset: 2304, Step: 20, Max: adcMask}   // mV
	fieldSYSV  = mathx.Linear{Offset: 2304, Step: 20, Max: adcMask}   // mV
	fieldVBUSV = mathx.Linear{Offset: 2600, Step: 100, Max: adcMask}  // mV
	fieldICHGR = mathx.Linear{Offset: 0, Step: 50, Max: adcMask}      // mA
	fieldTSPCT = mathx.Linear{Offset: 21000, Step: 465, Max: adcMask} // m%
)
