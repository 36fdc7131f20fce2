package heartrate

import "clickboards/x/mathx"

const (
	// 7-bit I2C address.
	Address = 0x57

	partID = 0x15

	regIntStat1   = 0x00
	regIntStat2   = 0x01
	regIntEna1    = 0x02
	regIntEna2    = 0x03
	regFIFOWrPtr  = 0x04
	regOvfCount   = 0x05
	regFIFORdPtr  = 0x06
	regFIFOData   = 0x07
	regFIFOCfg    = 0x08 // SMP_AVE[7:5] FIFO_ROLLOVER_EN[4] FIFO_A_FULL[3:0]
	regModeCfg    = 0x09 // SHDN[7] RESET[6] MODE[2:0]
	regSpO2Cfg    = 0x0A // SPO2_ADC_RGE[6:5] SPO2_SR[4:2] LED_PW[1:0]
	regLed1PA     = 0x0C
	regLed2PA     = 0x0D
	regSlots21    = 0x11
	regSlots43    = 0x12
	regTempInt    = 0x1F
	regTempFrac   = 0x20
	regTempCfg    = 0x21
	regRevID      = 0xFE
	regPartID     = 0xFF
	fifoDepth     = 32
	fifoPtrMask   = 0x1F
	sampleMask    = 0x3FFFF
	bytesPerLED   = 3
	modeShutdown  = 1 << 7
	modeReset     = 1 << 6
	modeMask      = 0x07
	fifoRollover  = 1 << 4
	fifoAFullMask = 0x0F
	smpAveMask    = 0xE0
	adcRangeMask  = 0x60
	rateMask      = 0x1C
	pwMask        = 0x03
	tempEnable    = 0x01

	intAlmostFull  = 1 << 7
	intNewData     = 1 << 6
	intALCOverflow = 1 << 5
	intPowerReady  = 1 << 0
	intTempReady   = 1 << 1
)

// LED drive current: 0.2 mA per LSB, 0..51 mA.
var fieldLEDCurrent = mathx.Linear{Offset: 0, Step: 200, Max: 0xFF} // µA
