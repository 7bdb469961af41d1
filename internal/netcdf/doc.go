// Package netcdf writes (and, for verification, reads) the NetCDF classic
// binary format.
//
// Only fixed-size variables are supported: every dimension has a positive
// length and there is no unlimited (record) dimension. That is all the
// UASDC trajectory profile needs, and it keeps the layout fully determined by
// the dataset: the same Dataset always encodes to the same bytes.
//
// # Layout
//
// All numbers are big-endian. A file is a header followed by the data of
// each variable, in declaration order, at the offset ("begin") the header
// records for it:
//
//	magic     'C' 'D' 'F' version      version 1 (32-bit offsets) or 2 (64-bit offsets)
//	numrecs   int32                    always 0 here
//	dim_list  ABSENT | 0x0A n dim*     dim = name length
//	gatt_list ABSENT | 0x0C n attr*    attr = name type n values padding
//	var_list  ABSENT | 0x0B n var*     var = name ndims dimid* vatt_list type vsize begin
//
// Names are an int32 length plus bytes padded with zeros to a 4-byte
// boundary. Version 1 is written unless the file would not fit 32-bit
// offsets.
//
// Reference: https://docs.unidata.ucar.edu/netcdf-c/current/file_format_specifications.html
package netcdf
