// Package appliancetest provides appliance documents for tests.
package appliancetest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nerrad567/geappliances-bridge/internal/appliance"
)

// DiscoveryAPI is a manifest with two common versions and one feature API.
//
// Version 1 requires 0x0001 and gates 0x0003 behind bit 0 and 0x0002 behind
// bit 1. Version 2 requires 0x0001, 0x0004 and 0x0006 and gates 0x0007
// behind bit 0. Feature type 3 version 1 requires 0x0200 and gates 0x0009.
const DiscoveryAPI = `{
    "common": {
        "versions": {
            "1": {
                "required": [ { "erd": "0x0001", "name": "Test Number", "length": 1 } ],
                "features": [
                    { "mask": "0x00000001", "name": "Nibbles", "required": [ { "erd": "0x0003", "name": "Nibbles", "length": 1 } ] },
                    { "mask": "0x00000002", "name": "Pair", "required": [ { "erd": "0x0002", "name": "Two Bytes", "length": 2 } ] }
                ]
            },
            "2": {
                "required": [
                    { "erd": "0x0001", "name": "Test Number", "length": 1 },
                    { "erd": "0x0004", "name": "Cabinet Temperature", "length": 2 },
                    { "erd": "0x0006", "name": "Mode", "length": 1 }
                ],
                "features": [
                    { "mask": "0x00000001", "name": "Identity", "required": [ { "erd": "0x0007", "name": "Model Number", "length": 8 } ] }
                ]
            }
        }
    },
    "featureApis": {
        "3": {
            "versions": {
                "1": {
                    "required": [ { "erd": "0x0200", "name": "Feature Thing", "length": 1 } ],
                    "features": [
                        { "mask": "0x00000001", "name": "Light", "required": [ { "erd": "0x0009", "name": "Light", "length": 1 } ] }
                    ]
                }
            }
        }
    }
}`

// DiscoveryDefinitions describes every ERD DiscoveryAPI mentions plus a
// status/request pair and a few shapes used by schema tests.
const DiscoveryDefinitions = `{
    "erds": [
        { "id": "0x0001", "name": "Test Number", "operations": ["read", "write"],
          "data": [ { "name": "Test Number", "type": "u8", "offset": 0, "size": 1 } ] },
        { "id": "0x0002", "name": "Two Bytes", "operations": ["read", "write"],
          "data": [
            { "name": "First", "type": "u8", "offset": 0, "size": 1 },
            { "name": "Second", "type": "u8", "offset": 1, "size": 1 }
          ] },
        { "id": "0x0003", "name": "Nibbles", "operations": ["read"],
          "data": [
            { "name": "High Nibble", "type": "u8", "offset": 0, "size": 1, "bits": { "offset": 0, "size": 4 } },
            { "name": "Low Nibble", "type": "u8", "offset": 0, "size": 1, "bits": { "offset": 4, "size": 4 } }
          ] },
        { "id": "0x0004", "name": "Cabinet Temperature", "description": "Cabinet temperature x10",
          "operations": ["read"],
          "data": [ { "name": "Cabinet Temperature (C)", "type": "i16", "offset": 0, "size": 2 } ] },
        { "id": "0x0006", "name": "Mode", "operations": ["read", "write"],
          "data": [ { "name": "Mode", "type": "enum", "offset": 0, "size": 1,
                      "values": { "0": "Off", "1": "Eco", "2": "Turbo" } } ] },
        { "id": "0x0007", "name": "Model Number", "operations": ["read"],
          "data": [ { "name": "Model Number", "type": "string", "offset": 0, "size": 8 } ] },
        { "id": "0x0008", "name": "Serial", "operations": ["read", "write"],
          "data": [ { "name": "Serial", "type": "raw", "offset": 0, "size": 4 } ] },
        { "id": "0x0009", "name": "Light", "operations": ["read", "write"],
          "data": [ { "name": "Light", "type": "bool", "offset": 0, "size": 1 } ] },
        { "id": "0x000a", "name": "Filter Flags", "operations": ["read"],
          "data": [
            { "name": "Filter Expired", "type": "u8", "offset": 0, "size": 1, "bits": { "offset": 0, "size": 1 } },
            { "name": "Filter Missing", "type": "u8", "offset": 0, "size": 1, "bits": { "offset": 1, "size": 1 } }
          ] },
        { "id": "0x000b", "name": "Total Energy", "operations": ["read"],
          "data": [ { "name": "Total Energy kWh x100", "type": "u32", "offset": 0, "size": 4 } ] },
        { "id": "0x000c", "name": "Door Alarm", "operations": ["write"],
          "data": [ { "name": "Door Alarm", "type": "bool", "offset": 0, "size": 1 } ] },
        { "id": "0x0100", "name": "Cook Mode Status", "operations": ["read"],
          "data": [ { "name": "Cook Mode", "type": "u8", "offset": 0, "size": 1 } ] },
        { "id": "0x0101", "name": "Cook Mode Request", "operations": ["read", "write"],
          "data": [ { "name": "Cook Mode", "type": "u8", "offset": 0, "size": 1 } ] },
        { "id": "0x0200", "name": "Feature Thing", "operations": ["read"],
          "data": [ { "name": "Feature Thing", "type": "u8", "offset": 0, "size": 1 } ] }
    ],
    "statusPairs": [ { "status": "0x0100", "request": "0x0101" } ]
}`

// MetaAPI requires three plain ERDs, gates six meta ERDs behind bit 0 and
// one more plain ERD behind bit 1.
const MetaAPI = `{
    "common": {
        "versions": {
            "1": {
                "required": [
                    { "erd": "0x0001", "name": "Test Number", "length": 1 },
                    { "erd": "0x0002", "name": "Test Sensor", "length": 1 },
                    { "erd": "0x0003", "name": "Test Select", "length": 1 }
                ],
                "features": [
                    { "mask": "0x00000001", "name": "Primary", "required": [
                        { "erd": "0x0004", "name": "Temp Min", "length": 1 },
                        { "erd": "0x0005", "name": "Temp Max", "length": 1 },
                        { "erd": "0x0006", "name": "Pressure Units", "length": 1 },
                        { "erd": "0x0007", "name": "Time Format", "length": 1 },
                        { "erd": "0x0008", "name": "Temp Supported", "length": 1 },
                        { "erd": "0x0009", "name": "Enum Allowables", "length": 1 }
                    ] },
                    { "mask": "0x00000002", "name": "Reverse", "required": [
                        { "erd": "0x000A", "name": "Test Reverse", "length": 1 }
                    ] }
                ]
            }
        }
    },
    "featureApis": {}
}`

// MetaDefinitions describes every ERD in MetaAPI.
const MetaDefinitions = `{
    "erds": [
        { "id": "0x0001", "name": "Test Number", "operations": ["read", "write"],
          "data": [ { "name": "Test Number", "type": "u8", "offset": 0, "size": 1 } ] },
        { "id": "0x0002", "name": "Test Sensor", "operations": ["read"],
          "data": [ { "name": "Test Sensor", "type": "u8", "offset": 0, "size": 1 } ] },
        { "id": "0x0003", "name": "Test Select", "operations": ["read", "write"],
          "data": [ { "name": "Test Select", "type": "enum", "offset": 0, "size": 1,
                      "values": { "0": "Zero", "1": "One", "255": "Max" } } ] },
        { "id": "0x0004", "name": "Temp Min", "operations": ["read"],
          "data": [ { "name": "Temp Min", "type": "u8", "offset": 0, "size": 1 } ] },
        { "id": "0x0005", "name": "Temp Max", "operations": ["read"],
          "data": [ { "name": "Temp Max", "type": "u8", "offset": 0, "size": 1 } ] },
        { "id": "0x0006", "name": "Pressure Units", "operations": ["read"],
          "data": [ { "name": "Pressure Units", "type": "enum", "offset": 0, "size": 1,
                      "values": { "0": "Pa", "1": "psi" } } ] },
        { "id": "0x0007", "name": "Time Format", "operations": ["read"],
          "data": [ { "name": "Time Format", "type": "enum", "offset": 0, "size": 1,
                      "values": { "0": "12-hour", "1": "24-hour" } } ] },
        { "id": "0x0008", "name": "Temp Supported", "operations": ["read"],
          "data": [ { "name": "Temp Supported", "type": "bool", "offset": 0, "size": 1 } ] },
        { "id": "0x0009", "name": "Enum Allowables", "operations": ["read"],
          "data": [
            { "name": "EnumAllowables.Zero", "type": "u8", "offset": 0, "size": 1, "bits": { "offset": 0, "size": 1 } },
            { "name": "EnumAllowables.One", "type": "u8", "offset": 0, "size": 1, "bits": { "offset": 1, "size": 1 } },
            { "name": "EnumAllowables.Max", "type": "u8", "offset": 0, "size": 1, "bits": { "offset": 2, "size": 1 } },
            { "name": "EnumAllowables.Reserved", "type": "u8", "offset": 0, "size": 1, "bits": { "offset": 3, "size": 5 } }
          ] },
        { "id": "0x000a", "name": "Test Reverse", "operations": ["read", "write"],
          "data": [ { "name": "Test Reverse", "type": "u8", "offset": 0, "size": 1 } ] }
    ]
}`

// MetaTable binds the meta ERDs of MetaAPI to the plain entities.
const MetaTable = `{
    "common": {
        "1": {
            "0x0004": { "Temp Min": { "fields": ["{}_0001_Test_Number", "{}_000a_Test_Reverse"], "func": "set_min" } },
            "0x0005": { "Temp Max": { "fields": ["{}_0001_Test_Number"], "func": "set_max" } },
            "0x0006": { "Pressure Units": { "fields": ["{}_0001_Test_Number"], "func": "set_unit" } },
            "0x0008": { "Temp Supported": {
                "fields": ["{}_0001_Test_Number", "{}_0002_Test_Sensor", "{}_0003_Test_Select"],
                "func": "enable_or_disable" } },
            "0x0009": {
                "EnumAllowables.Zero": { "fields": ["{}_0003_Test_Select.Zero"], "func": "set_allowables" },
                "EnumAllowables.One": { "fields": ["{}_0003_Test_Select.One"], "func": "set_allowables" },
                "EnumAllowables.Max": { "fields": ["{}_0003_Test_Select.Max"], "func": "set_allowables" }
            }
        }
    }
}`

// Manifest parses doc or fails the test.
func Manifest(t testing.TB, doc string) *appliance.Manifest {
	t.Helper()
	m, err := appliance.ParseManifest([]byte(doc))
	require.NoError(t, err)
	return m
}

// Definitions parses doc or fails the test.
func Definitions(t testing.TB, doc string) *appliance.Definitions {
	t.Helper()
	d, err := appliance.ParseDefinitions([]byte(doc))
	require.NoError(t, err)
	return d
}

// Meta parses doc or fails the test.
func Meta(t testing.TB, doc string) *appliance.MetaTable {
	t.Helper()
	m, err := appliance.ParseMetaTable([]byte(doc))
	require.NoError(t, err)
	return m
}
